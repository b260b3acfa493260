// Package media opens release pages in the user's browser.
package media

import (
	_ "embed"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/validation"
)

//go:embed openers.toml
var openersTOML []byte

// PlatformOpeners lists the opener commands tried on one platform.
type PlatformOpeners struct {
	Candidates []string            `toml:"candidates"`
	Args       map[string][]string `toml:"args"`
}

type openersFile struct {
	Platforms map[string]PlatformOpeners `toml:"platforms"`
}

// LoadOpeners parses an openers definition.
func LoadOpeners(data []byte) (map[string]PlatformOpeners, error) {
	var f openersFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing openers.toml: %w", err)
	}
	return f.Platforms, nil
}

type Opener struct {
	command   string
	args      []string
	validator *validation.URLValidator
	lookPath  func(string) (string, error)
}

// NewOpener picks the command used to open links: media.default_opener when
// it is not the platform default, else the first installed candidate from
// the embedded table.
func NewOpener(cfg *config.Config) *Opener {
	return newOpener(cfg, runtime.GOOS, exec.LookPath)
}

func newOpener(cfg *config.Config, goos string, lookPath func(string) (string, error)) *Opener {
	o := &Opener{validator: validation.NewURLValidator(), lookPath: lookPath}

	platforms, err := LoadOpeners(openersTOML)
	if err != nil {
		debuglog.Errorf("media: %v", err)
	}
	plat := platforms[goos]

	if cfg != nil && !isStockDefault(plat, cfg.Media.DefaultOpener) {
		if fields := strings.Fields(cfg.Media.DefaultOpener); len(fields) > 0 {
			o.command = fields[0]
			o.args = fields[1:]
			return o
		}
	}

	for _, candidate := range plat.Candidates {
		if _, err := lookPath(candidate); err == nil {
			o.command = candidate
			o.args = plat.Args[candidate]
			return o
		}
	}

	if len(plat.Candidates) > 0 {
		o.command = plat.Candidates[0]
		o.args = plat.Args[o.command]
	}
	return o
}

// Command returns the command line that would open target.
func (o *Opener) Command(target string) (*exec.Cmd, error) {
	if o.command == "" {
		return nil, fmt.Errorf("no application found to open URL")
	}
	normalized, err := o.validator.ValidateAndNormalize(target)
	if err != nil {
		return nil, fmt.Errorf("refusing to open %q: %w", target, err)
	}
	args := append(append([]string(nil), o.args...), normalized)
	return exec.Command(o.command, args...), nil
}

// Open starts the opener detached and returns once it is running.
func (o *Opener) Open(target string) error {
	cmd, err := o.Command(target)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", o.command, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Name is the opener command.
func (o *Opener) Name() string {
	return o.command
}

// isStockDefault reports whether opener is the bare command config writes
// for this platform, which defers to the candidate table.
func isStockDefault(plat PlatformOpeners, opener string) bool {
	opener = strings.TrimSpace(opener)
	return len(plat.Candidates) > 0 && opener == plat.Candidates[0]
}
