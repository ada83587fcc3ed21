package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// keyMetadata は署名鍵APIのレスポンス。
type keyMetadata struct {
	ApplicationCode string `json:"application_code"`
	Generation      uint   `json:"generation"`
	PublicKey       string `json:"public_key"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// keysCmd は署名鍵の管理コマンド。
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage license signing keys",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysGetCmd())
	cmd.AddCommand(keysRotateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysDisableCmd())
	return cmd
}

func keysPath(app string) string {
	return fmt.Sprintf("/v1/applications/%s/keys", app)
}

// printKey はoutputに応じて署名鍵を表示する。
func printKey(cmd *cobra.Command, body []byte, format string) error {
	if output == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	}
	var key keyMetadata
	if err := json.Unmarshal(body, &key); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, key.ApplicationCode, key.Generation)
	return nil
}

func keysCreateCmd() *cobra.Command {
	var app string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the first signing key for an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, keysPath(app), nil, http.StatusCreated)
			if err != nil {
				return err
			}
			return printKey(cmd, body, "Created signing key for application %q (generation: %d)\n")
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.MarkFlagRequired("app")
	return cmd
}

func keysGetCmd() *cobra.Command {
	var app string
	var generation uint
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the public key of an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := keysPath(app) + "/current"
			if generation > 0 {
				path = fmt.Sprintf("%s/%d", keysPath(app), generation)
			}

			body, err := callAPI(http.MethodGet, path, nil, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var key keyMetadata
			if err := json.Unmarshal(body, &key); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.Flags().UintVar(&generation, "generation", 0, "Key generation (optional, defaults to current)")
	cmd.MarkFlagRequired("app")
	return cmd
}

func keysRotateCmd() *cobra.Command {
	var app string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Create a new signing key generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, keysPath(app)+"/rotate", nil, http.StatusCreated)
			if err != nil {
				return err
			}
			return printKey(cmd, body, "Rotated signing key for application %q (new generation: %d)\n")
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.MarkFlagRequired("app")
	return cmd
}

func keysListCmd() *cobra.Command {
	var app string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all signing keys of an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, keysPath(app), nil, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				Keys []keyMetadata `json:"keys"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "GENERATION\tSTATUS\tCREATED AT")
			for _, k := range result.Keys {
				fmt.Fprintf(w, "%d\t%s\t%s\n", k.Generation, k.Status, k.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.MarkFlagRequired("app")
	return cmd
}

func keysDisableCmd() *cobra.Command {
	var app string
	var generation uint
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable a signing key generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generation == 0 {
				return fmt.Errorf("--generation is required")
			}
			if _, err := callAPI(http.MethodDelete, fmt.Sprintf("%s/%d", keysPath(app), generation), nil, http.StatusAccepted); err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Disabled signing key for application %q (generation: %d)\n", app, generation)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.Flags().UintVar(&generation, "generation", 0, "Key generation (required)")
	cmd.MarkFlagRequired("app")
	cmd.MarkFlagRequired("generation")
	return cmd
}
