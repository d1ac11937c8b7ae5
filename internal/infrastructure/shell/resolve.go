package shell

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrResolve is returned when no usable shell is found.
var ErrResolve = errors.New("failed to resolve shell")

// Info is a resolved shell command.
type Info struct {
	Path string   `json:"path"`
	Args []string `json:"args"`
	Name string   `json:"name"`
}

type candidate struct {
	name string
	path string
}

var candidates = map[string][]candidate{
	ShellZsh:  {{"zsh", "/bin/zsh"}, {"bash", "/bin/bash"}, {"sh", "/bin/sh"}},
	ShellBash: {{"bash", "/bin/bash"}, {"zsh", "/bin/zsh"}, {"sh", "/bin/sh"}},
	ShellFish: {{"fish", "/opt/homebrew/bin/fish"}, {"fish", "/usr/local/bin/fish"}, {"zsh", "/bin/zsh"}},
	ShellSh:   {{"sh", "/bin/sh"}, {"bash", "/bin/bash"}},
}

// fileExists is swapped in tests.
var fileExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Resolve picks the shell for a new session. A non-empty override is used
// as given, without login flags. Otherwise the first existing candidate for
// the configured shell wins.
func Resolve(cfg Config, override string) (Info, error) {
	if override != "" {
		return infoFromPath(override)
	}

	if cfg.DefaultShell == ShellCustom {
		if cfg.CustomPath == "" {
			return Info{}, fmt.Errorf("%w: custom shell path is missing", ErrResolve)
		}
		info, err := infoFromPath(cfg.CustomPath)
		if err != nil {
			return Info{}, err
		}
		return withLogin(info, cfg.LoginShell), nil
	}

	list, ok := candidates[cfg.DefaultShell]
	if !ok {
		list = candidates[ShellZsh]
	}
	for _, c := range list {
		if fileExists(c.path) {
			return withLogin(Info{Path: c.path, Args: []string{}, Name: c.name}, cfg.LoginShell), nil
		}
	}

	return Info{}, fmt.Errorf("%w: no %s shell installed", ErrResolve, cfg.DefaultShell)
}

func withLogin(info Info, login bool) Info {
	if login {
		info.Args = append(info.Args, "-l")
	}
	return info
}

func infoFromPath(path string) (Info, error) {
	if !fileExists(path) && !inPath(path) {
		return Info{}, fmt.Errorf("%w: shell path does not exist: %s", ErrResolve, path)
	}
	return Info{Path: path, Args: []string{}, Name: filepath.Base(path)}, nil
}

func inPath(binary string) bool {
	if strings.ContainsRune(binary, filepath.Separator) {
		return fileExists(binary)
	}
	_, err := exec.LookPath(binary)
	return err == nil
}
