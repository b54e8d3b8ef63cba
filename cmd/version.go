package cmd

import (
	"encoding/json"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden at release time with -ldflags "-X github.com/qoeplatform/qoe/cmd.version=...".
var version = "0.3.0"

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo combines the release version with the VCS stamp the Go
// toolchain embeds in the binary.
func readBuildInfo() buildInfo {
	info := buildInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; version == "" && v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.time":
			info.BuiltAt = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func userAgent() string {
	return "qoe-cli/" + readBuildInfo().Version
}

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := readBuildInfo()
			switch {
			case short:
				cmd.Println(info.Version)
			case asJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			default:
				cmd.Println("QoE CLI version:", info.Version)
				if info.Commit != "" {
					commit := info.Commit
					if info.Modified {
						commit += " (modified)"
					}
					cmd.Println("Commit:", commit)
				}
				if info.BuiltAt != "" {
					cmd.Println("Built:", info.BuiltAt)
				}
				cmd.Println("Go version:", info.GoVersion)
				cmd.Println("Platform:", info.Platform)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print the version number only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
