package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/emmett/streamvox/internal/models"
	"github.com/emmett/streamvox/internal/output"
)

// ModelManager handles the model commands
type ModelManager struct {
	store *models.Store
	out   io.Writer
}

// NewModelManager creates a ModelManager over store printing to out
func NewModelManager(store *models.Store, out io.Writer) *ModelManager {
	return &ModelManager{store: store, out: out}
}

// rows merges the catalog with whatever else is installed
func (m *ModelManager) rows() ([]output.ModelRow, error) {
	installed, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("error listing models: %w", err)
	}
	def, _ := m.store.DefaultModel()

	isInstalled := make(map[string]bool, len(installed))
	for _, name := range installed {
		isInstalled[name] = true
	}

	var rows []output.ModelRow
	for _, e := range models.Catalog {
		rows = append(rows, output.ModelRow{
			Name:        e.Name,
			Language:    e.Language,
			Size:        e.Size,
			Installed:   isInstalled[e.Name],
			Default:     e.Name == def,
			Description: e.Description,
		})
		delete(isInstalled, e.Name)
	}
	for _, name := range installed {
		if !isInstalled[name] {
			continue
		}
		row := output.ModelRow{Name: name, Installed: true, Default: name == def}
		if b, err := m.store.LoadBundle(name); err == nil {
			row.Language = b.Language
			row.Description = b.Description
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ListModels prints the catalog and installed bundles
func (m *ModelManager) ListModels() error {
	rows, err := m.rows()
	if err != nil {
		return err
	}
	output.WriteModels(m.out, rows)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "To install a model, use:")
	fmt.Fprintln(m.out, "  streamvox models download <model-name> [--url <zip>]")
	return nil
}

// Download installs a catalog bundle, or fetches url when one is given
func (m *ModelManager) Download(name, url string) error {
	installed, err := m.store.IsInstalled(name)
	if err != nil {
		return fmt.Errorf("error checking model: %w", err)
	}
	if installed {
		path, _ := m.store.Path(name)
		fmt.Fprintf(m.out, "Model '%s' is already installed.\nLocation: %s\n", name, path)
		return nil
	}

	progress := func(downloaded, total int64) {
		if total > 0 {
			fmt.Fprintf(m.out, "\rProgress: %.1f%% (%d/%d bytes)", float64(downloaded)/float64(total)*100, downloaded, total)
		} else {
			fmt.Fprintf(m.out, "\rProgress: %d bytes", downloaded)
		}
	}

	if url != "" {
		fmt.Fprintf(m.out, "Downloading model %s from %s\n", name, url)
		err = m.store.Download(name, url, progress)
	} else {
		if models.Find(name) == nil {
			return fmt.Errorf("unknown model: %s (pass --url to fetch a bundle archive)", name)
		}
		err = m.store.Install(name, progress)
	}
	if err != nil {
		return fmt.Errorf("error installing model: %w", err)
	}

	fmt.Fprintf(m.out, "\nModel '%s' installed.\n", name)
	return nil
}

// SetDefault records name as the default model
func (m *ModelManager) SetDefault(name string) error {
	if err := m.store.SetDefaultModel(name); err != nil {
		return fmt.Errorf("error setting default model: %w", err)
	}
	fmt.Fprintf(m.out, "Default model set to: %s\n", name)

	if installed, _ := m.store.IsInstalled(name); !installed {
		fmt.Fprintf(m.out, "Note: this model is not installed yet. Run 'streamvox models download %s'.\n", name)
	}
	return nil
}

// SelectInteractive lets the user pick a model by number from in
func (m *ModelManager) SelectInteractive(in io.Reader) (string, error) {
	rows, err := m.rows()
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no models available")
	}

	fmt.Fprintln(m.out, "Select a model to use:")
	for i, r := range rows {
		status := "not installed"
		if r.Installed {
			status = "installed"
		}
		fmt.Fprintf(m.out, "%d. %s (%s)\n", i+1, r.Name, status)
	}
	fmt.Fprintf(m.out, "Enter number (1-%d): ", len(rows))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	var choice int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &choice); err != nil || choice < 1 || choice > len(rows) {
		return "", fmt.Errorf("invalid selection")
	}

	selected := rows[choice-1]
	if !selected.Installed {
		if err := m.Download(selected.Name, ""); err != nil {
			return "", err
		}
	}
	return selected.Name, nil
}
