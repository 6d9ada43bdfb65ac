package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"book-library/internal/settings"
)

func newSettingsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect library settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and any validation problems",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := o.openSettings("")
			if err != nil {
				return err
			}
			current := store.Get()

			fmt.Fprintf(o.out, "# %s\n", store.Path())
			enc := yaml.NewEncoder(o.out)
			enc.SetIndent(2)
			if err := enc.Encode(current); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			var verr *settings.ValidationError
			if err := store.Validate(current); errors.As(err, &verr) {
				fields := make([]string, 0, len(verr.Fields))
				for field := range verr.Fields {
					fields = append(fields, field)
				}
				sort.Strings(fields)

				fmt.Fprintln(o.out, "# problems:")
				for _, field := range fields {
					fmt.Fprintf(o.out, "#   %s %s\n", field, verr.Fields[field])
				}
			}
			return nil
		},
	})
	return cmd
}
