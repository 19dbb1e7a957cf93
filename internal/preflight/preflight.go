// Package preflight checks the binaries and cluster contexts a deploy
// depends on.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// BinaryCheck represents a binary and its purpose.
type BinaryCheck struct {
	Name        string
	Required    bool   // false = warning only
	InstallHint string // e.g., "brew install sops" or "https://..."
}

// Checker runs the checks. LookPath and ListContexts are replaceable so
// tests do not depend on the host.
type Checker struct {
	Binaries []BinaryCheck

	// Contexts are the kube contexts deploys will target.
	Contexts []string

	LookPath     func(name string) (string, error)
	ListContexts func(ctx context.Context) ([]string, error)
}

// DefaultBinaries returns the tools used by values, deploy and secrets.
func DefaultBinaries(helmBin string) []BinaryCheck {
	if helmBin == "" {
		helmBin = "helm"
	}
	return []BinaryCheck{
		{Name: helmBin, Required: true, InstallHint: "Install helm: https://helm.sh/docs/intro/install/"},
		{Name: "kubectl", Required: false, InstallHint: "Install kubectl: https://kubernetes.io/docs/tasks/tools/"},
		{Name: "sops", Required: false, InstallHint: "Install sops: brew install sops"},
	}
}

// NewChecker creates a checker over the host PATH and kubeconfig.
func NewChecker(binaries []BinaryCheck, contexts []string) *Checker {
	return &Checker{
		Binaries:     binaries,
		Contexts:     contexts,
		LookPath:     exec.LookPath,
		ListContexts: kubectlContexts,
	}
}

// Report is the outcome of Run. Errors block deploys, warnings do not.
type Report struct {
	Found    []string
	Warnings []string
	Errors   []string
}

// OK reports whether no blocking problem was found.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Run performs all checks.
func (c *Checker) Run(ctx context.Context) *Report {
	r := &Report{}
	for _, bin := range c.Binaries {
		if _, err := c.LookPath(bin.Name); err != nil {
			msg := bin.Name + ": " + bin.InstallHint
			if bin.Required {
				r.Errors = append(r.Errors, msg)
			} else {
				r.Warnings = append(r.Warnings, msg)
			}
			continue
		}
		r.Found = append(r.Found, bin.Name)
	}

	if len(c.Contexts) == 0 || c.ListContexts == nil {
		return r
	}
	available, err := c.ListContexts(ctx)
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("kube contexts: %v", err))
		return r
	}
	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	for _, name := range c.Contexts {
		if !known[name] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("kube context %q not found in kubeconfig", name))
		}
	}
	return r
}

// kubectlContexts lists the contexts of the current kubeconfig.
func kubectlContexts(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "kubectl", "config", "get-contexts", "-o", "name").Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("kubectl timed out")
	}
	if err != nil {
		return nil, fmt.Errorf("kubectl config get-contexts: %w", err)
	}
	return ParseContexts(string(out)), nil
}

// ParseContexts splits kubectl context output into names.
func ParseContexts(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names
}

// IsBinaryAvailable checks if a specific binary is available in PATH.
func IsBinaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
