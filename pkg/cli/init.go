package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dorkodu/pharpub/pkg/config"
	"github.com/dorkodu/pharpub/pkg/utils"
	"github.com/spf13/cobra"
)

var entryCandidates = []string{"index.php", "main.php", "app.php", "cli.php"}

func (c *CLI) newInitCmd() *cobra.Command {
	var (
		format string
		name   string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pharpub manifest",
		Long: `Create a pharpub manifest in the project root.
The job name, source directory and entry file are detected from
composer.json and the project layout when possible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(format, name, force)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "manifest format (json, yaml, toml)")
	cmd.Flags().StringVar(&name, "name", "", "archive name (default: detected from composer.json)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")

	return cmd
}

func (c *CLI) runInit(format, name string, force bool) error {
	root := c.config.Root()

	ext := strings.ToLower(format)
	switch ext {
	case "json", "yaml", "yml", "toml":
	default:
		return fmt.Errorf("unknown manifest format %q", format)
	}
	configPath := c.config.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(root, "pharpub.config."+ext)
	}

	if existing, err := config.FindConfig(root); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", existing)
	}
	if utils.FileExists(configPath) && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	project := detectProject(root)
	if name == "" {
		name = project.name
	}

	manager := config.NewManager()
	cfg := manager.GetDefaultConfig(name)
	job := &cfg.Jobs[0]
	job.Source = project.source
	job.Stub = project.entry
	if !strings.HasSuffix(job.Stub, ".php") {
		// the include pattern would drop an extensionless entry script
		job.Pattern = ""
	}
	if project.composer {
		c.printInfo("Detected composer project")
		job.Exclude = append(job.Exclude, "vendor/bin/**")
	}

	if err := manager.WriteConfig(configPath, cfg); err != nil {
		return err
	}

	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	c.printInfo(fmt.Sprintf("Job '%s' packs %s with entry %s", job.Name, job.Source, job.Stub))
	return nil
}

type projectLayout struct {
	name     string
	source   string
	entry    string
	composer bool
}

// detectProject guesses the archive name, source dir and entry file
func detectProject(root string) projectLayout {
	layout := projectLayout{
		name:   filepath.Base(root) + ".phar",
		source: ".",
		entry:  "index.php",
	}

	if data, err := os.ReadFile(filepath.Join(root, "composer.json")); err == nil {
		layout.composer = true
		var composer struct {
			Name string   `json:"name"`
			Bin  []string `json:"bin"`
		}
		if json.Unmarshal(data, &composer) == nil {
			if composer.Name != "" {
				layout.name = path.Base(composer.Name) + ".phar"
			}
			if len(composer.Bin) > 0 {
				layout.entry = composer.Bin[0]
				return layout
			}
		}
	}

	if utils.DirectoryExists(filepath.Join(root, "src")) {
		layout.source = "src"
	}
	for _, candidate := range entryCandidates {
		if utils.FileExists(filepath.Join(root, layout.source, candidate)) {
			layout.entry = candidate
			break
		}
	}
	return layout
}
