package loader

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/binderveil/binderveil/internal/parcel"
)

// SDKProperty holds the platform API level.
const SDKProperty = "ro.build.version.sdk"

// PropertyReader looks up a single system property.
type PropertyReader interface {
	Property(name string) (string, error)
}

// PropertyFunc adapts a function to PropertyReader.
type PropertyFunc func(name string) (string, error)

func (f PropertyFunc) Property(name string) (string, error) { return f(name) }

// Getprop reads properties by running the getprop tool.
type Getprop struct {
	// Path defaults to "getprop".
	Path    string
	Timeout time.Duration
}

func (g Getprop) Property(name string) (string, error) {
	path := g.Path
	if path == "" {
		path = "getprop"
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, name).Output()
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// DetectShape derives the envelope shape from the platform SDK level.
func DetectShape(props PropertyReader) (parcel.Shape, error) {
	v, err := props.Property(SDKProperty)
	if err != nil {
		return 0, err
	}
	sdk, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || sdk <= 0 {
		return 0, fmt.Errorf("invalid %s %q", SDKProperty, v)
	}
	return parcel.ShapeForSDK(sdk), nil
}
