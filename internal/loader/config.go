package loader

import (
	"github.com/binderveil/binderveil/internal/config"
	"github.com/binderveil/binderveil/internal/intercept"
)

// FromConfig maps the file configuration onto the module configuration.
func FromConfig(c *config.Config) (Config, error) {
	opts, err := c.BlocklistOptions()
	if err != nil {
		return Config{}, err
	}
	v, err := c.Validator()
	if err != nil {
		return Config{}, err
	}
	strategy, err := intercept.ParseMatchStrategy(c.Intercept.Strategy)
	if err != nil {
		return Config{}, err
	}
	hook, err := ParseHookKind(c.Intercept.Hook)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Targets:   c.Targets,
		Library:   c.Intercept.Library,
		Hook:      hook,
		MaxSize:   opts.MaxSize,
		Blocklist: opts,
		Validator: v,
		Strategy:  strategy,
	}, nil
}
