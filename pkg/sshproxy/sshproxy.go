// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package sshproxy manages a process-wide SSH control-master socket
// directory so that every fetch in a sync run reuses one multiplexed
// SSH connection per remote host instead of renegotiating per project.
package sshproxy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Proxy is a scoped SSH control-master manager. Create one with Open at
// the start of the network phase and Close it when the phase ends; every
// worker must see the same instance (§9 "Worker-context smuggling").
type Proxy struct {
	dir      string
	disabled bool

	mu      sync.Mutex
	masters map[string]bool // host -> control master opened
}

// Open creates a fresh control-master socket directory. If disabled is
// true (the sync command passes true when GIT_SSH is set), the returned
// Proxy is a no-op. Open does not itself inspect the environment or
// check the platform for UNIX domain socket support.
func Open(disabled bool) (*Proxy, error) {
	if disabled {
		return &Proxy{disabled: true}, nil
	}

	dir, err := os.MkdirTemp("", "reposync-ssh-")
	if err != nil {
		return &Proxy{disabled: true}, fmt.Errorf("creating ssh control socket dir: %w", err)
	}

	return &Proxy{dir: dir, masters: make(map[string]bool)}, nil
}

// Disabled reports whether this Proxy is a no-op.
func (p *Proxy) Disabled() bool {
	return p == nil || p.disabled
}

// Env returns the GIT_SSH_COMMAND-style environment additions workers
// should set on their fetch subprocess so that it uses this proxy's
// control-master socket and shares the multiplexed channel.
func (p *Proxy) Env(host string) []string {
	if p.Disabled() {
		return nil
	}
	return []string{"GIT_SSH_COMMAND=" + p.sshCommand(host)}
}

// sshCommand builds an `ssh` invocation string carrying the
// control-master options, grounded on the same option set a classic SSH
// multiplexing wrapper uses.
func (p *Proxy) sshCommand(host string) string {
	controlPath := filepath.Join(p.dir, "%r@%h:%p")
	opts := []string{
		"ssh",
		"-o", "ControlMaster=auto",
		"-o", "ControlPath=" + controlPath,
		"-o", "ControlPersist=15m",
		"-o", "StrictHostKeyChecking=accept-new",
	}
	cmd := opts[0]
	for _, part := range opts[1:] {
		cmd += " " + part
	}
	return cmd
}

// EnsureMaster opens the control master for host if one is not already
// running, by issuing a no-op ssh invocation with ControlMaster=auto.
// Subsequent connections to the same host reuse the socket automatically
// because ssh itself multiplexes through ControlPath.
func (p *Proxy) EnsureMaster(ctx context.Context, host string) error {
	if p.Disabled() || host == "" {
		return nil
	}

	p.mu.Lock()
	if p.masters[host] {
		p.mu.Unlock()
		return nil
	}
	p.masters[host] = true
	p.mu.Unlock()

	controlPath := filepath.Join(p.dir, "%r@%h:%p")
	args := []string{
		"-o", "ControlMaster=auto",
		"-o", "ControlPath=" + controlPath,
		"-o", "ControlPersist=15m",
		"-o", "StrictHostKeyChecking=accept-new",
		"-N", "-f", host,
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)
	// Best-effort: a failure here just means the per-fetch ssh call will
	// negotiate its own connection instead of reusing a master.
	_ = cmd.Run()
	return nil
}

// Close terminates every control master opened by this Proxy and removes
// its socket directory.
func (p *Proxy) Close() error {
	if p.Disabled() {
		return nil
	}

	p.mu.Lock()
	hosts := make([]string, 0, len(p.masters))
	for host := range p.masters {
		hosts = append(hosts, host)
	}
	p.mu.Unlock()

	controlPath := filepath.Join(p.dir, "%r@%h:%p")
	for _, host := range hosts {
		args := []string{"-o", "ControlPath=" + controlPath, "-O", "exit", host}
		_ = exec.Command("ssh", args...).Run()
	}

	return os.RemoveAll(p.dir)
}
