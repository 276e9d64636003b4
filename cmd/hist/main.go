package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hist-go/internal/app"
	"hist-go/internal/config"
	"hist-go/internal/encryption"
	"hist-go/internal/hist"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the global config, falling back to defaults when absent.
func loadConfig() (*config.Config, *app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults.ConfigPath, defaults.BaseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config, finds the enclosing workspace and creates a
// HistApp. The caller must defer app.Close().
func newApp(command string) (*app.HistApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	root, err := config.FindWorkspaceRoot(cwd)
	if err != nil {
		return nil, err
	}

	a, err := app.NewHistApp(cfg, root, command, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: index %q must be a non-negative integer", hist.ErrInvalidArgument, s)
	}
	return i, nil
}

// readPassphrase prompts on stderr and reads a line without echo when stdin
// is a terminal.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeOutput buffers what write produces and replaces path only once write
// has succeeded, so a failed export leaves an existing file untouched.
func writeOutput(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hist-export-*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing output file: %w", err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "hist",
	Short:        "Local, per-file version history",
	SilenceUsage: true,
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		dir, err := config.InitWorkspace(cwd)
		if err != nil {
			return err
		}
		fmt.Printf("Initialized hist workspace in %s\n", dir)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		if err := config.Init(defaults.ConfigPath, config.NewConfig(defaults.BaseDir)); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		return (&config.Manager{}).Write(os.Stdout, cfg)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used for encrypted exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key written to %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save [PATH]",
	Short: "Snapshot a file, or every file in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		branch, _ := cmd.Flags().GetString("branch")

		a, err := newApp("save")
		if err != nil {
			return err
		}
		defer a.Close()

		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		count, err := a.Save(target, recursive, branch)
		if err != nil {
			if count > 0 {
				fmt.Printf("Saved %d version(s) before the failure\n", count)
			}
			return fmt.Errorf("saving: %w", err)
		}
		fmt.Printf("Saved %d version(s)\n", count)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Add external content as a new version of PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		sinkName, _ := cmd.Flags().GetString("sink")
		object, _ := cmd.Flags().GetString("object")
		decrypt, _ := cmd.Flags().GetBool("decrypt")
		branch, _ := cmd.Flags().GetString("branch")

		if (from == "") == (object == "") {
			return fmt.Errorf("exactly one of --from or --object is required")
		}

		a, err := newApp("import")
		if err != nil {
			return err
		}
		defer a.Close()

		var v *hist.Version
		if from != "" {
			v, err = a.Import(args[0], from, branch)
		} else {
			var pass string
			if decrypt {
				if pass, err = readPassphrase("Passphrase: "); err != nil {
					return err
				}
			}
			v, err = a.ImportFromSink(args[0], sinkName, object, decrypt, pass, branch)
		}
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		fmt.Printf("Imported %d bytes as a new version of %s\n", len(v.Content), v.Path)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log PATH",
	Short: "List the versions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("log")
		if err != nil {
			return err
		}
		defer a.Close()

		_, versions, err := a.Log(args[0])
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No history.")
			return nil
		}
		renderLog(os.Stdout, versions)
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show PATH INDEX",
	Short: "Print one version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("show")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Show(args[0], index)
		if err != nil {
			return err
		}
		renderVersion(os.Stdout, index, v)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore PATH INDEX",
	Short: "Overwrite the live file with a stored version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Restore(args[0], index)
		if err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
		fmt.Printf("Restored %s to version %d (%s)\n", v.Path, index, v.Timestamp.Local().Format(timeLayout))
		return nil
	},
}

// diff command
var diffCmd = &cobra.Command{
	Use:   "diff PATH INDEX",
	Short: "Diff a stored version against the live file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		context, _ := cmd.Flags().GetInt("unified")
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("diff")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Compare(args[0], index)
		if err != nil {
			return err
		}
		changed, err := renderDiff(os.Stdout, c, context)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println("No differences.")
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export PATH INDEX",
	Short: "Write a stored version to a file, stdout or an export sink",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		sinkName, _ := cmd.Flags().GetString("sink")
		object, _ := cmd.Flags().GetString("object")
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("export")
		if err != nil {
			return err
		}
		defer a.Close()

		if out != "" {
			if out == "-" {
				return a.ExportTo(args[0], index, os.Stdout, encrypt)
			}
			return writeOutput(out, func(w io.Writer) error {
				return a.ExportTo(args[0], index, w, encrypt)
			})
		}

		name, err := a.Export(args[0], index, sinkName, object, encrypt)
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		fmt.Printf("Exported to %s\n", name)
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm PATH INDEX",
	Short: "Delete one version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Remove(args[0], index); err != nil {
			return err
		}
		fmt.Printf("Deleted version %d\n", index)
		return nil
	},
}

// drop command
var dropCmd = &cobra.Command{
	Use:   "drop PATH",
	Short: "Delete the whole history of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("drop")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Drop(args[0]); err != nil {
			return err
		}
		fmt.Println("History deleted.")
		return nil
	},
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune PATH",
	Short: "Keep only the newest versions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")

		a, err := newApp("prune")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Prune(args[0], keep)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d version(s)\n", removed)
		return nil
	},
}

// fav command
var favCmd = &cobra.Command{
	Use:   "fav PATH INDEX",
	Short: "Toggle the favorite flag of a version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		a, err := newApp("fav")
		if err != nil {
			return err
		}
		defer a.Close()

		on, err := a.ToggleFavorite(args[0], index)
		if err != nil {
			return err
		}
		if on {
			fmt.Printf("Version %d marked as favorite\n", index)
		} else {
			fmt.Printf("Version %d unmarked\n", index)
		}
		return nil
	},
}

// branch command
var branchCmd = &cobra.Command{
	Use:   "branch PATH NAME",
	Short: "Tag the history of a file with a branch marker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("branch")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.TagBranch(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Tagged %s with branch %s\n", v.Path, v.BranchName())
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find versions whose content contains QUERY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("search")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Search(args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		renderSearch(os.Stdout, results, args[0])
		return nil
	},
}

// files command
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List every file with stored history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("files")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Files()
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No tracked files.")
			return nil
		}
		renderFiles(os.Stdout, files)
		return nil
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal [PATH]",
	Short: "View recent store mutations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("journal")
		if err != nil {
			return err
		}
		defer a.Close()

		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		entries, err := a.Journal(path, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No journal entries.")
			return nil
		}
		renderJournal(os.Stdout, entries)
		return nil
	},
}

// sinks command
var sinksCmd = &cobra.Command{
	Use:   "sinks",
	Short: "List export sinks and check that they are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("sinks")
		if err != nil {
			return err
		}
		defer a.Close()

		checks := a.CheckSinks()
		if len(checks) == 0 {
			fmt.Println("No sinks configured.")
			return nil
		}
		failed := 0
		for i, c := range checks {
			marker := " "
			if i == 0 {
				marker = "*"
			}
			if c.Err != nil {
				failed++
				red.Printf("%s %s: %v\n", marker, c.Name, c.Err)
				continue
			}
			green.Printf("%s %s: ok\n", marker, c.Name)
		}
		if failed > 0 {
			return fmt.Errorf("%d sink(s) failed validation", failed)
		}
		return nil
	},
}

// act command
var actCmd = &cobra.Command{
	Use:   "act ACTION PATH INDEX",
	Short: "Run an action (" + actionList() + ") on a version",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[2])
		if err != nil {
			return err
		}
		a, err := newApp("act")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Act(args[0], args[1], index)
		if err != nil {
			return err
		}

		switch res.Kind {
		case hist.ActionPreview:
			renderVersion(os.Stdout, index, res.Version)
		case hist.ActionApply:
			fmt.Printf("Restored version %d\n", index)
		case hist.ActionCompare:
			if changed, err := renderDiff(os.Stdout, res.Comparison, 3); err != nil {
				return err
			} else if !changed {
				fmt.Println("No differences.")
			}
		case hist.ActionExport:
			fmt.Printf("Exported to %s\n", res.Object)
		case hist.ActionDelete:
			fmt.Printf("Deleted version %d\n", index)
		case hist.ActionToggleFavorite:
			fmt.Printf("Favorite: %v\n", res.Favorite)
		}
		return nil
	},
}

func actionList() string {
	kinds := hist.ActionKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	saveCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	saveCmd.Flags().StringP("branch", "b", "", "Branch label for the new versions")

	importCmd.Flags().String("from", "", "Local file to import")
	importCmd.Flags().String("sink", "", "Export sink to read from (default: first configured)")
	importCmd.Flags().String("object", "", "Object name in the sink")
	importCmd.Flags().Bool("decrypt", false, "Decrypt the object with the private key")
	importCmd.Flags().StringP("branch", "b", "", "Branch label for the new version")

	diffCmd.Flags().IntP("unified", "U", 3, "Lines of context")

	exportCmd.Flags().StringP("out", "o", "", "Write to a local file instead of a sink (- for stdout)")
	exportCmd.Flags().String("sink", "", "Export sink (default: first configured)")
	exportCmd.Flags().String("object", "", "Object name (default: derived from path and timestamp)")
	exportCmd.Flags().Bool("encrypt", false, "Encrypt with the configured public key")

	pruneCmd.Flags().IntP("keep", "n", 10, "Number of newest versions to keep")

	journalCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")

	// root commands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(favCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(sinksCmd)
	rootCmd.AddCommand(actCmd)
}
