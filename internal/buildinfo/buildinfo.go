// Package buildinfo exposes version data stamped at link time:
//
//	go build -ldflags "-X drinksmenu/internal/buildinfo.Version=v1.2.0 ..."
//
// When Commit or BuiltAt are not stamped they are read from the VCS data the
// Go toolchain embeds in the binary.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	commit, builtAt := Commit, BuiltAt
	if commit == "" || builtAt == "" {
		vcsCommit, vcsTime := fromVCS()
		if commit == "" {
			commit = vcsCommit
		}
		if builtAt == "" {
			builtAt = vcsTime
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": builtAt,
	}
}

func fromVCS() (revision, at string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
}
