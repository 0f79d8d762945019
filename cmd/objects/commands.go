package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/celerix-dev/celerix-objects/pkg/sdk"
	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		apiFlag      string
		insecureFlag bool
	)

	rootCmd := &cobra.Command{
		Use:           "objects",
		Short:         "CLI client for the Celerix Objects REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "", "Objects service base URL (default $OBJECTS_API or "+sdk.DefaultAddr+")")
	rootCmd.PersistentFlags().BoolVarP(&insecureFlag, "insecure", "k", false, "Accept self-signed TLS certificates")

	client := func() *sdk.Client {
		var opts []sdk.Option
		if insecureFlag {
			opts = append(opts, sdk.WithInsecureTLS())
		}
		if apiFlag == "" {
			return sdk.FromEnv(opts...)
		}
		return sdk.New(apiFlag, opts...)
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "create <json>",
			Short: "Create an object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				obj, err := parseObject(args[0])
				if err != nil {
					return err
				}
				created, err := client().Create(cmd.Context(), obj)
				if err != nil {
					return err
				}
				return printJSON(out, created)
			},
		},
		&cobra.Command{
			Use:   "get <uid>",
			Short: "Print one object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				obj, err := client().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(out, obj)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print the URL of every object",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				urls, err := client().Locators(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(out, urls)
			},
		},
		&cobra.Command{
			Use:   "put <uid> <json>",
			Short: "Replace an object",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				obj, err := parseObject(args[1])
				if err != nil {
					return err
				}
				replaced, err := client().Replace(cmd.Context(), args[0], obj)
				if err != nil {
					return err
				}
				return printJSON(out, replaced)
			},
		},
		&cobra.Command{
			Use:   "delete <uid>",
			Short: "Delete an object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := client().Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(out, "OK")
				return nil
			},
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check that the service can reach its store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := client().Ping(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "PONG")
				return nil
			},
		},
	)
	return rootCmd
}

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("argument must be a JSON object: %q", s)
	}
	return obj, nil
}

func printJSON(out io.Writer, v any) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(bytes))
	return err
}
