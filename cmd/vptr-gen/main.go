package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/thinwire/vptr/cmd/vptr-gen/generator"
)

var (
	genOpts = struct {
		manifest string
		output   string
		verbose  bool
	}{}

	rootCmd = &cobra.Command{
		Use:   "vptr-gen [packages]",
		Short: "Generate single-word dynamic-dispatch wiring",
		Long: "Generate the method tables, descriptor registrations, and typed single-pointer\n" +
			"references for every (type, interface) pair declared by //vptr:implements\n" +
			"directives or a YAML manifest.",
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&genOpts.manifest, "manifest", "", "YAML manifest declaring additional pairs")
	rootCmd.Flags().StringVarP(&genOpts.output, "output", "o", "vptr_gen.go", "name of the generated file in each package directory")
	rootCmd.Flags().BoolVarP(&genOpts.verbose, "verbose", "v", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	if genOpts.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer logger.Sync()

	var extra []generator.Pair
	if genOpts.manifest != "" {
		var err error
		if extra, err = generator.LoadManifest(genOpts.manifest); err != nil {
			return err
		}
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return err
	}
	if len(pkgs) > 1 && len(extra) > 0 {
		return errors.New("a manifest applies to exactly one package")
	}

	gen := generator.New(generator.Options{Logger: logger})
	failed := false
	for _, pkg := range pkgs {
		// The package may reference generated identifiers that do not exist
		// until this run completes, so load diagnostics are expected.
		for _, e := range pkg.Errors {
			logger.Debug("load diagnostic",
				zap.String("package", pkg.PkgPath),
				zap.String("error", e.Msg))
		}

		src, err := gen.Generate(generator.FromPackages(pkg), extra...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", pkg.PkgPath, err)
			failed = true
			continue
		}
		if src == nil {
			logger.Debug("no pairs declared", zap.String("package", pkg.PkgPath))
			continue
		}

		dir := packageDir(pkg)
		if dir == "" {
			fmt.Fprintf(os.Stderr, "%s: cannot determine package directory\n", pkg.PkgPath)
			failed = true
			continue
		}
		out := filepath.Join(dir, genOpts.output)
		if err := os.WriteFile(out, src, 0644); err != nil {
			return err
		}
		logger.Info("wrote", zap.String("file", out))
	}
	if failed {
		return errors.New("generation failed")
	}
	return nil
}

func packageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}
	if len(pkg.CompiledGoFiles) > 0 {
		return filepath.Dir(pkg.CompiledGoFiles[0])
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
