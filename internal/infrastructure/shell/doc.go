// Package shell resolves the shell command new terminal sessions run.
//
// The selection comes from a small config file (TOML, YAML or JSON, chosen
// by extension) with the fields default_shell, custom_path, default_env and
// login_shell. A Resolver keeps the current config and reloads it when the
// file changes on disk.
package shell
