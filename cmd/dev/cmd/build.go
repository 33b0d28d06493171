package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

type target struct {
	os   string
	arch string
}

// boards the cli is usually deployed to
var boards = map[string]target{
	"nanopi-neo": {os: "linux", arch: "arm"},
	"rpi":        {os: "linux", arch: "arm64"},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the pmic cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			os := cmd.Flag("os").Value.String()
			arch := cmd.Flag("arch").Value.String()
			version := cmd.Flag("version").Value.String()
			if board := cmd.Flag("board").Value.String(); board != "" {
				t, ok := boards[board]
				if !ok {
					return fmt.Errorf("unknown board %q", board)
				}
				os, arch = t.os, t.arch
			}

			// native builds need cgo for the hid adapter; everything else goes through docker
			if os == runtime.GOOS && arch == runtime.GOARCH {
				return build.GoBuild("dist/pmic", "./cmd/pmic", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "github.com/mklimuk/pmic/config",
					EnableCgo:     true,
					Arch:          arch,
					OS:            os,
				})
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", os, arch), []string{"build", "--version", version, "--os", os, "--arch", arch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("board", "", "build for a known board (nanopi-neo, rpi)")

	return cmd
}
