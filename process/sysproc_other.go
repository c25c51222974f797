//go:build !unix

package process

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

func terminate(c *exec.Cmd) error {
	if c.Process == nil {
		return nil
	}
	return c.Process.Kill()
}

func kill(c *exec.Cmd) error {
	return terminate(c)
}
