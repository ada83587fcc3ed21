package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"license-management-service/pkg/licensing"
)

// hwidCmd はこのコンピュータのハードウェア識別子を表示する。
func hwidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hwid",
		Short: "Print the hardware identifier of this computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := licensing.NewHardwareIdentifier(licensing.NewSystemCharacteristics()).ForCurrentComputer()
			if err != nil {
				return err
			}
			if output == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"hardware_identifier": id})
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// keygenCmd はサーバーを使わずにRSA鍵ペアを生成する。
func keygenCmd() *cobra.Command {
	var bits int
	var outDir string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a standalone RSA signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := licensing.GenerateRSAKeyPair(bits)
			if err != nil {
				return err
			}

			if outDir == "" {
				if output == "json" {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"public_key":  pair.PublicKey,
						"private_key": pair.PrivateKey,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Public key:\n%s\n\nPrivate key:\n%s\n", pair.PublicKey, pair.PrivateKey)
				return nil
			}

			dir, err := homedir.Expand(outDir)
			if err != nil {
				return fmt.Errorf("expanding path %q: %w", outDir, err)
			}
			if err := osFs.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			pubPath, err := writeTextFile(filepath.Join(dir, "public.key"), pair.PublicKey)
			if err != nil {
				return err
			}
			privPath, err := writeTextFile(filepath.Join(dir, "private.key"), pair.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", pubPath, privPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size in bits")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write public.key and private.key")
	return cmd
}

// serialCmd はアプリケーションコードからシリアル番号を生成・検証する。
func serialCmd() *cobra.Command {
	var app, check string
	var empty bool
	cmd := &cobra.Command{
		Use:   "serial",
		Short: "Generate or check a serial number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if check != "" {
				if !licensing.IsSerialNumberCheckSumValid(check) {
					return errors.New("serial number checksum is not valid")
				}
				if app != "" {
					ok, err := licensing.IsApplicationCodeValid(check, app)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("serial number does not belong to application %q", app)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Serial number is valid")
				return nil
			}

			if app == "" {
				return errors.New("--app is required")
			}
			generate := licensing.NewSerialNumber
			if empty {
				generate = licensing.EmptySerialNumber
			}
			serial, err := generate(app)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), serial)
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "Application code")
	cmd.Flags().StringVar(&check, "check", "", "Serial number to check instead of generating one")
	cmd.Flags().BoolVar(&empty, "empty", false, "Generate the all-zero serial number")
	return cmd
}
