package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"encwallet/internal/application"
	"encwallet/internal/config"
	"encwallet/internal/domain"
	"encwallet/internal/infrastructure/keyservice"
	"encwallet/internal/keys"
	"encwallet/internal/paillier"
	"encwallet/internal/units"

	"github.com/spf13/cobra"
)

var (
	keygenBits      int
	amountDecimals  uint8
	decryptDecimals uint8
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Paillier key pair as PAILLIER_* env lines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, err := paillier.GenerateKey(rand.Reader, keygenBits)
		if err != nil {
			return err
		}
		env := map[string]string{
			"PAILLIER_N":      paillier.FormatHex(sk.N),
			"PAILLIER_G":      paillier.FormatHex(sk.G),
			"PAILLIER_LAMBDA": paillier.FormatHex(sk.Lambda),
			"PAILLIER_MU":     paillier.FormatHex(sk.Mu),
		}
		return render(cmd.OutOrStdout(), env, func(w io.Writer) error {
			for _, key := range []string{"PAILLIER_N", "PAILLIER_G", "PAILLIER_LAMBDA", "PAILLIER_MU"} {
				if _, err := fmt.Fprintf(w, "%s=%s\n", key, env[key]); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <amount>",
	Short: "Encrypt a decimal amount under the configured public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		public, err := keys.LoadPublic(cfg.PaillierN, cfg.PaillierG)
		if err != nil {
			return err
		}
		value, err := units.Parse(args[0], amountDecimals)
		if err != nil {
			return err
		}
		c, err := public.PublicKey().EncryptSigned(value)
		if err != nil {
			return err
		}
		ciphertext := paillier.FormatHex(c)
		return render(cmd.OutOrStdout(), map[string]string{"ciphertext": ciphertext, "raw": value.String()}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, ciphertext)
			return err
		})
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <ciphertext>",
	Short: "Decrypt a hex ciphertext with the private key or the remote decrypt service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		decryptor, err := newDecryptor(cfg)
		if err != nil {
			return err
		}
		value, err := decryptor.Decrypt(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		amount := domain.DecryptedAmount{Raw: value.String(), Formatted: units.Format(value, decryptDecimals)}
		return render(cmd.OutOrStdout(), amount, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s (raw %s)\n", units.FormatGrouped(value, decryptDecimals), amount.Raw)
			return err
		})
	},
}

func newDecryptor(cfg config.Config) (application.Decryptor, error) {
	if cfg.HasPrivateKey() {
		full, err := keys.LoadFull(cfg.PaillierN, cfg.PaillierG, cfg.PaillierLambda, cfg.PaillierMu)
		if err != nil {
			return nil, err
		}
		return full, nil
	}
	if cfg.DecryptURL != "" {
		remote, err := keyservice.NewClient(keyservice.Config{
			URL:         cfg.DecryptURL,
			MaxAttempts: cfg.RPCMaxAttempts,
			MaxDelay:    cfg.RPCMaxDelay,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return keys.Unsupported{}, nil
}

func init() {
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "bit length of the modulus n")
	encryptCmd.Flags().Uint8Var(&amountDecimals, "decimals", 18, "token decimals used to scale the amount")
	decryptCmd.Flags().Uint8Var(&decryptDecimals, "decimals", 18, "token decimals used to format the result")
}
