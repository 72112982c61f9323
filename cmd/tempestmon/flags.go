package main

import (
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sznuper/tempestmon/internal/config"
)

// optionFields maps each --kebab-case flag to its config.Options field index,
// named after the field's yaml tag.
func optionFields() map[string]int {
	t := reflect.TypeOf(config.Options{})
	fields := make(map[string]int, t.NumField())
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("yaml")
		fields[strings.ReplaceAll(tag, "_", "-")] = i
	}
	return fields
}

// registerOptionFlags adds a persistent flag for every config option.
func registerOptionFlags(cmd *cobra.Command) {
	for name := range optionFields() {
		cmd.PersistentFlags().String(name, "", "override options."+strings.ReplaceAll(name, "-", "_"))
	}
}

// applyOptionFlags overlays the option flags the user set onto cfg.
func applyOptionFlags(cmd *cobra.Command, cfg *config.Config) {
	fields := optionFields()
	v := reflect.ValueOf(&cfg.Options).Elem()
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if i, ok := fields[f.Name]; ok {
			v.Field(i).SetString(f.Value.String())
		}
	})
}

// selectorFlags registers the flags shared by setup and run.
func selectorFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("site", "s", "", "site to test")
	cmd.Flags().String("host", "", "pin compute tests to this hypervisor (needs --site)")
	cmd.Flags().String("image", "", "image id to boot instead of the configured one")
}
