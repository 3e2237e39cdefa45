package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"multisend/internal/config"
	"multisend/internal/consts"
	"multisend/internal/logic/instruction"
	"multisend/internal/logic/pipeline"
	"multisend/internal/secret"
	"multisend/internal/svc"
	"multisend/pkg/logger"
)

// phraseReader 测试时替换
var phraseReader interface {
	ReadPhrase(prompt string) ([]byte, error)
} = secret.NewPrompter()

// session 一次调用的装配结果
type session struct {
	svc      *svc.ServiceContext
	pipeline *pipeline.Pipeline
}

func newSession(flags *rootFlags, tx config.TerraTxParams) (*session, error) {
	c, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	instr, err := instruction.Load(flags.path)
	if err != nil {
		return nil, err
	}
	logger.Infof("loaded %s: %d recipients, %d senders", flags.path, len(instr.Recipients), len(instr.Senders))

	sc, err := svc.NewServiceContext(*c, svc.Params{Chain: flags.chain, Network: flags.network, Terra: tx})
	if err != nil {
		return nil, err
	}
	logger.Infof("using %s", sc.Backend)
	return &session{svc: sc, pipeline: pipeline.New(sc.Backend, instr, sc.PipelineOptions()...)}, nil
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check amount conservation, addresses and sender balances without sending anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(flags, config.TerraTxParams{})
			if err != nil {
				return err
			}
			defer s.svc.Close()

			if err := s.pipeline.Validate(cmd.Context()); err != nil {
				return fmt.Errorf("validation failed at %s: %w", s.pipeline.FailedAt(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Validation passed.")
			return nil
		},
	}
}

type broadcastFlags struct {
	gasPrice      string
	gasAdjustment float64
	memo          string
}

func newBroadcastCmd(flags *rootFlags) *cobra.Command {
	bf := &broadcastFlags{}
	cmd := &cobra.Command{
		Use:   "broadcast-transaction [gas_price] [gas_adjustment] [memo]",
		Short: "Build, sign and submit all transfers",
		Long: "Build, sign and submit all transfers. The seed phrase is read from the terminal without echo.\n" +
			"Gas price, gas adjustment and memo apply to Terra only.",
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := terraParams(bf, args)
			if err != nil {
				return err
			}
			if flags.chain != consts.ChainTerra && (tx.GasPrice != "" || tx.Memo != "") {
				logger.Warnf("gas price and memo are ignored on %s", flags.chain)
			}

			s, err := newSession(flags, tx)
			if err != nil {
				return err
			}
			defer s.svc.Close()

			return broadcast(cmd, s, flags.derivationPath)
		},
	}
	cmd.Flags().StringVar(&bf.gasPrice, "gas-price", "", "gas price, e.g. 0.015uluna [TERRA ONLY]")
	cmd.Flags().Float64Var(&bf.gasAdjustment, "gas-adjustment", consts.TerraDefaultGasAdj, "multiplier applied to simulated gas [TERRA ONLY]")
	cmd.Flags().StringVar(&bf.memo, "memo", "", "transaction memo [TERRA ONLY]")
	return cmd
}

// terraParams 位置参数优先于同名 flag
func terraParams(bf *broadcastFlags, args []string) (config.TerraTxParams, error) {
	tx := config.TerraTxParams{GasPrice: bf.gasPrice, GasAdjustment: bf.gasAdjustment, Memo: bf.memo}
	if len(args) > 0 {
		tx.GasPrice = args[0]
	}
	if len(args) > 1 {
		adj, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return tx, fmt.Errorf("gas adjustment %q is not a valid float value", args[1])
		}
		tx.GasAdjustment = adj
	}
	if len(args) > 2 {
		tx.Memo = args[2]
	}
	if tx.GasAdjustment <= 0 {
		return tx, fmt.Errorf("gas adjustment must be > 0, got %v", tx.GasAdjustment)
	}
	return tx, nil
}

func broadcast(cmd *cobra.Command, s *session, derivationPath string) error {
	phrase, err := phraseReader.ReadPhrase("Seed phrase: ")
	if err != nil {
		return err
	}
	id, err := s.svc.Backend.DeriveIdentity(phrase, derivationPath)
	secret.Zero(phrase)
	if err != nil {
		return err
	}
	defer id.Zero()
	logger.Infof("signing as %s", id.Address())

	receipt, err := s.pipeline.Broadcast(cmd.Context(), id)
	if err != nil {
		return err
	}
	printReceipt(cmd.OutOrStdout(), receipt.Transfers, receipt.Signatures)
	return nil
}

func printReceipt(w io.Writer, transfers int, signatures []string) {
	fmt.Fprintf(w, "Sent %d transfers in %d transaction(s):\n", transfers, len(signatures))
	for _, sig := range signatures {
		fmt.Fprintln(w, sig)
	}
}
