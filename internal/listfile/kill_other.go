//go:build !unix

package listfile

import "errors"

func sigkill(pid int) error {
	return errors.New("kill not supported")
}
