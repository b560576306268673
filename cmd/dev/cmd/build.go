package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/gophertribe/devtool/build"
	"github.com/spf13/cobra"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the co2 cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, _ := cmd.Flags().GetString("version")
			goos, _ := cmd.Flags().GetString("os")
			arch, _ := cmd.Flags().GetString("arch")
			docker, _ := cmd.Flags().GetBool("docker")

			if !docker {
				out := fmt.Sprintf("dist/co2-%s-%s", goos, arch)
				slog.Info("building", "out", out, "version", version)
				// hid bindings need cgo
				return build.GoBuild(out, "./cmd/co2", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          arch,
					OS:            goos,
				})
			}

			noCache, _ := cmd.Flags().GetBool("no-cache")
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, arch),
				[]string{"build", "--version", version, "--os", goos, "--arch", arch},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   "gophertribe/gobuild:1.25-bookworm",
				})
		},
	}
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for, e.g. arm64 for the sensor boards")
	cmd.Flags().Bool("docker", false, "cross-compile inside the gobuild docker image")
	cmd.Flags().Bool("no-cache", false, "do not use docker cache")
	return cmd
}
