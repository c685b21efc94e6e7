package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSettingsCmd creates the settings command.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write stored settings",
		Long: `Settings live in the database and take effect without a restart.
Recognized keys include refresh_interval_minutes, auto_summarize,
mark_read_on_open, default_model, and llm_provider.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsGet(args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsList()
		},
	})

	return cmd
}

func runSettingsGet(key string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	value, err := app.Store.GetSetting(key, "")
	if err != nil {
		return err
	}
	if value == "" {
		fmt.Printf("%s is unset\n", key)
		return nil
	}
	fmt.Println(value)
	return nil
}

func runSettingsSet(key, value string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.SetSetting(key, value); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", key, value)
	return nil
}

func runSettingsList() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	settings, err := app.Store.GetAllSettings()
	if err != nil {
		return err
	}
	if len(settings) == 0 {
		fmt.Println("No settings stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
	for _, s := range settings {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, s.Value, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
