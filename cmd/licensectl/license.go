package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"license-management-service/pkg/licensing"
)

// osFs はCLIが読み書きするファイルシステム。
var osFs = afero.NewOsFs()

// licenseCmd はライセンスの発行・検証コマンド。
func licenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Issue and verify licenses",
	}
	cmd.AddCommand(licenseIssueCmd())
	cmd.AddCommand(licenseListCmd())
	cmd.AddCommand(licenseVerifyRemoteCmd())
	cmd.AddCommand(licenseVerifyCmd())
	cmd.AddCommand(licenseInstallCmd())
	return cmd
}

func licensesPath(app string) string {
	return fmt.Sprintf("/v1/applications/%s/licenses", app)
}

// readTextFile は"~"を展開してファイルを読み込み、前後の空白を除く。
func readTextFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expanding path %q: %w", path, err)
	}
	b, err := afero.ReadFile(osFs, expanded)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", expanded, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// writeTextFile は"~"を展開してファイルを書き込む。
func writeTextFile(path, content string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expanding path %q: %w", path, err)
	}
	if err := afero.WriteFile(osFs, expanded, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", expanded, err)
	}
	return expanded, nil
}

// parseProperties は"key=value"形式のフラグをプロパティに変換する。
func parseProperties(values []string) ([]map[string]string, error) {
	props := make([]map[string]string, 0, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", v)
		}
		props = append(props, map[string]string{"key": key, "value": value})
	}
	return props, nil
}

func licenseIssueCmd() *cobra.Command {
	var (
		app        string
		hardwareID string
		expires    string
		validFor   time.Duration
		properties []string
		outFile    string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a license signed with the current key",
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(properties)
			if err != nil {
				return err
			}

			payload := map[string]any{
				"hardware_identifier": hardwareID,
				"properties":          props,
			}
			switch {
			case expires != "" && validFor > 0:
				return errors.New("--expires and --valid-for are mutually exclusive")
			case expires != "":
				t, err := time.Parse(time.DateOnly, expires)
				if err != nil {
					return fmt.Errorf("invalid --expires %q: expected YYYY-MM-DD", expires)
				}
				payload["expiration_date"] = t.UTC()
			case validFor > 0:
				payload["expiration_date"] = time.Now().UTC().Add(validFor)
			}

			body, err := callAPI(http.MethodPost, licensesPath(app), payload, http.StatusCreated)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				SerialNumber string `json:"serial_number"`
				Content      string `json:"content"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if outFile != "" {
				path, err := writeTextFile(outFile, result.Content)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Issued license %s to %s\n", result.SerialNumber, path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), licensing.Wrap(result.Content, 64))
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.Flags().StringVar(&hardwareID, "hwid", "", "Hardware identifier to bind the license to")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiration date (YYYY-MM-DD, UTC)")
	cmd.Flags().DurationVar(&validFor, "valid-for", 0, "Validity period from now (e.g. 8760h)")
	cmd.Flags().StringArrayVar(&properties, "property", nil, "Property as key=value (repeatable)")
	cmd.Flags().StringVar(&outFile, "out", "", "Write the license to a file")
	cmd.MarkFlagRequired("app")
	return cmd
}

func licenseListCmd() *cobra.Command {
	var app string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issued licenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, licensesPath(app), nil, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				Licenses []struct {
					SerialNumber       string `json:"serial_number"`
					KeyGeneration      uint   `json:"key_generation"`
					HardwareIdentifier string `json:"hardware_identifier"`
					ExpirationDate     string `json:"expiration_date"`
				} `json:"licenses"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SERIAL NUMBER\tGENERATION\tHARDWARE ID\tEXPIRES")
			for _, l := range result.Licenses {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", l.SerialNumber, l.KeyGeneration, l.HardwareIdentifier, l.ExpirationDate)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.MarkFlagRequired("app")
	return cmd
}

func licenseVerifyRemoteCmd() *cobra.Command {
	var app, licenseFile, hardwareID string
	cmd := &cobra.Command{
		Use:   "verify-remote",
		Short: "Verify a license against all active keys on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readTextFile(licenseFile)
			if err != nil {
				return err
			}

			body, err := callAPI(http.MethodPost, licensesPath(app)+"/verify", map[string]string{
				"content":             content,
				"hardware_identifier": hardwareID,
			}, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				SerialNumber  string `json:"serial_number"`
				KeyGeneration uint   `json:"key_generation"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "License %s is valid (key generation: %d)\n", result.SerialNumber, result.KeyGeneration)
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code (required)")
	cmd.Flags().StringVar(&licenseFile, "file", "", "License file (required)")
	cmd.Flags().StringVar(&hardwareID, "hwid", "", "Hardware identifier of the target computer")
	cmd.MarkFlagRequired("app")
	cmd.MarkFlagRequired("file")
	return cmd
}

// licenseVerifyCmd はサーバーに接続せず、公開鍵とこのコンピュータの特性でライセンスを検証する。
func licenseVerifyCmd() *cobra.Command {
	var app, publicKeyFile, licenseFile, company, product string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a license offline on this computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, err := readTextFile(publicKeyFile)
			if err != nil {
				return err
			}

			var src licensing.LicenseSource
			switch {
			case licenseFile != "":
				content, err := readTextFile(licenseFile)
				if err != nil {
					return err
				}
				src = licensing.NewInMemorySource(content)
			case company != "" && product != "":
				fs, err := licensing.NewFileSource(company, product)
				if err != nil {
					return err
				}
				src = fs
			default:
				return errors.New("either --file or --company and --product are required")
			}

			verifier := licensing.NewVerifier().
				WithRSAPublicKey(publicKey).
				WithComputerCharacteristics(licensing.NewSystemCharacteristics())
			if app != "" {
				verifier.WithApplicationCode(app)
			} else {
				verifier.WithoutApplicationCode()
			}

			license, err := verifier.LoadFromSource(src)
			if err != nil {
				return err
			}
			if license == nil {
				return errors.New("no license installed")
			}
			return printLicense(cmd, license)
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code the serial number must belong to")
	cmd.Flags().StringVar(&publicKeyFile, "public-key", "", "File containing the base64 public key (required)")
	cmd.Flags().StringVar(&licenseFile, "file", "", "License file")
	cmd.Flags().StringVar(&company, "company", "", "Company folder of the installed license")
	cmd.Flags().StringVar(&product, "product", "", "Product folder of the installed license")
	cmd.MarkFlagRequired("public-key")
	return cmd
}

// licenseInstallCmd はライセンスファイルを既定の場所に配置する。
func licenseInstallCmd() *cobra.Command {
	var licenseFile, company, product string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a license file for this computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readTextFile(licenseFile)
			if err != nil {
				return err
			}
			if _, err := licensing.Deserialize(content); err != nil {
				return err
			}

			src, err := licensing.NewFileSource(company, product)
			if err != nil {
				return err
			}
			if err := src.Write(content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed license for %s/%s\n", company, product)
			return nil
		},
	}
	cmd.Flags().StringVar(&licenseFile, "file", "", "License file (required)")
	cmd.Flags().StringVar(&company, "company", "", "Company folder (required)")
	cmd.Flags().StringVar(&product, "product", "", "Product folder (required)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("company")
	cmd.MarkFlagRequired("product")
	return cmd
}

func printLicense(cmd *cobra.Command, l *licensing.SignedLicense) error {
	if output == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"valid":               true,
			"serial_number":       l.SerialNumber(),
			"hardware_identifier": l.HardwareIdentifier(),
			"issue_date":          l.IssueDate().Format(time.RFC3339),
			"expiration_date":     l.ExpirationDate().Format(time.RFC3339),
			"properties":          l.Properties(),
		})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Serial number\t%s\n", l.SerialNumber())
	fmt.Fprintf(w, "Hardware ID\t%s\n", l.HardwareIdentifier())
	fmt.Fprintf(w, "Issued\t%s\n", l.IssueDate().Format(licensing.DateLayout))
	fmt.Fprintf(w, "Expires\t%s\n", l.ExpirationDate().Format(licensing.DateLayout))
	for _, p := range l.Properties() {
		fmt.Fprintf(w, "%s\t%s\n", p.Key, p.Value)
	}
	return w.Flush()
}
