package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/config"
	"encwallet/internal/domain"
	"encwallet/internal/infrastructure/ethrpc"
	"encwallet/internal/infrastructure/storage"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	balanceEncrypted bool
	historyAccount   string
	historyToken     string
	historyPage      int
	historyPageSize  int
	historyFilter    string
	historySearch    string
	checkpointToken  string
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List tokens deployed through the factory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, rpcClient, err := dialChain()
		if err != nil {
			return err
		}
		registry, err := application.NewTokenRegistry(rpcClient, common.HexToAddress(cfg.FactoryAddress), nil)
		if err != nil {
			return err
		}
		tokens, err := registry.List(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), tokens, func(w io.Writer) error {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tSYMBOL\tNAME\tDECIMALS")
			for _, token := range tokens {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", token.Address, token.Symbol, token.Name, token.Decimals)
			}
			return tw.Flush()
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <token> <account>",
	Short: "Show an account balance on a token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := application.ParseAddress("token", args[0])
		if err != nil {
			return err
		}
		account, err := application.ParseAddress("account", args[1])
		if err != nil {
			return err
		}
		cfg, rpcClient, err := dialChain()
		if err != nil {
			return err
		}
		decryptor, err := newDecryptor(cfg)
		if err != nil {
			return err
		}
		registry, err := application.NewTokenRegistry(rpcClient, common.HexToAddress(cfg.FactoryAddress), nil)
		if err != nil {
			return err
		}
		balances, err := application.NewBalanceService(rpcClient, registry, decryptor)
		if err != nil {
			return err
		}

		if balanceEncrypted {
			ciphertext, err := balances.Encrypted(cmd.Context(), token, account)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]string{"ciphertext": ciphertext.Hex()}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, ciphertext.Hex())
				return err
			})
		}
		balance, err := balances.Decrypted(cmd.Context(), token, account)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), balance, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s\n", balance.Formatted, balance.Symbol)
			return err
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show one page of an account's transfers on a token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := application.ParseAddress("account", historyAccount)
		if err != nil {
			return err
		}
		token, err := application.ParseAddress("token", historyToken)
		if err != nil {
			return err
		}
		filter, err := application.ParseHistoryFilter(historyFilter)
		if err != nil {
			return err
		}
		cfg, rpcClient, err := dialChain()
		if err != nil {
			return err
		}
		history, err := application.NewHistoryService(rpcClient, application.HistoryConfig{
			FromBlock:        cfg.FromBlock,
			PageSize:         cfg.PageSize,
			TimestampWorkers: cfg.TimestampWorkers,
		})
		if err != nil {
			return err
		}
		page, err := history.Page(cmd.Context(), application.HistoryQuery{
			Account:  account,
			Token:    token,
			Page:     historyPage,
			PageSize: historyPageSize,
			Filter:   filter,
			Search:   historySearch,
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), page, func(w io.Writer) error {
			return writeHistory(w, page)
		})
	},
}

func writeHistory(w io.Writer, page domain.TransactionPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tBLOCK\tFROM\tTO\tSTATUS\tAGE")
	for _, tx := range page.Transactions {
		age := "-"
		if tx.Timestamp > 0 {
			age = humanize.Time(time.Unix(int64(tx.Timestamp), 0))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", tx.Hash, tx.BlockNumber, tx.From, tx.To, tx.Status, age)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.NextCursor != nil {
		_, err := fmt.Fprintf(w, "more results: --page %d\n", *page.NextCursor)
		return err
	}
	return nil
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and reset transfer watcher checkpoints",
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the watcher checkpoint of a token so it rescans from FROM_BLOCK",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := application.ParseAddress("token", checkpointToken)
		if err != nil {
			return err
		}
		cfg, rpcClient, err := dialChain()
		if err != nil {
			return err
		}
		state, err := storage.OpenStateStore(cfg.StateDBDriver, cfg.StateDBDSN)
		if err != nil {
			return err
		}
		defer state.Close()

		watcher, err := application.NewTransferWatcher(rpcClient, state, nil, application.WatcherConfig{StartBlock: cfg.FromBlock})
		if err != nil {
			return err
		}
		if err := watcher.Reset(cmd.Context(), token); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "checkpoint cleared for %s\n", token.Hex())
		return err
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored watcher checkpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := storage.OpenStateStore(cfg.StateDBDriver, cfg.StateDBDSN)
		if err != nil {
			return err
		}
		defer state.Close()

		checkpoints, err := state.ListCheckpoints(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), checkpoints, func(w io.Writer) error {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tBLOCK\tUPDATED")
			for _, cp := range checkpoints {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cp.Key, humanize.Comma(int64(cp.Block)), humanize.Time(cp.UpdatedAt))
			}
			return tw.Flush()
		})
	},
}

func dialChain() (config.Config, *ethrpc.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.RequireRPC(); err != nil {
		return config.Config{}, nil, err
	}
	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:         cfg.RPCURL,
		MaxAttempts: cfg.RPCMaxAttempts,
		MaxDelay:    cfg.RPCMaxDelay,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, rpcClient, nil
}

func init() {
	balanceCmd.Flags().BoolVar(&balanceEncrypted, "encrypted", false, "print the raw ciphertext without decrypting")

	historyCmd.Flags().StringVar(&historyAccount, "account", "", "account address")
	historyCmd.Flags().StringVar(&historyToken, "token", "", "token address")
	historyCmd.Flags().IntVar(&historyPage, "page", 0, "zero-based page number")
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 0, "transactions per page (default PAGE_SIZE)")
	historyCmd.Flags().StringVar(&historyFilter, "filter", "all", "all|sent|received")
	historyCmd.Flags().StringVar(&historySearch, "search", "", "substring of the recipient address")
	_ = historyCmd.MarkFlagRequired("account")
	_ = historyCmd.MarkFlagRequired("token")

	checkpointResetCmd.Flags().StringVar(&checkpointToken, "token", "", "token address")
	_ = checkpointResetCmd.MarkFlagRequired("token")
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
}
