package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"multisend/internal/consts"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/instruction"
	"multisend/pkg/logger"
)

// 退出码
const (
	exitOK         = 0
	exitFailure    = 1 // 未分类错误（参数、配置）
	exitInvalid    = 2 // 指令或校验不通过，未改变链上状态
	exitNetwork    = 3 // 网络错误，未改变链上状态
	exitSubmission = 4 // 提交失败，没有分块上链
	exitPartial    = 5 // 部分分块已上链
	exitPanic      = 70
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run stdout 接收结果输出，错误与日志写到 stderr
func run(args []string, stdout io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			code = exitPanic
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	err := root.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode 按错误类型区分退出码，部分完成单独标出
func exitCode(err error) int {
	var (
		malformed    *instruction.MalformedInputError
		mismatch     *instruction.AmountMismatchError
		invalid      *chain.InvalidAddressError
		insufficient *chain.InsufficientBalanceError
		submission   *chain.SubmissionError
		network      *chain.NetworkError
	)
	switch {
	case errors.As(err, &submission):
		if submission.Partial() {
			return exitPartial
		}
		return exitSubmission
	case errors.As(err, &malformed), errors.As(err, &mismatch),
		errors.As(err, &invalid), errors.As(err, &insufficient):
		return exitInvalid
	case errors.As(err, &network):
		return exitNetwork
	default:
		return exitFailure
	}
}

type rootFlags struct {
	network        string
	chain          string
	path           string
	configFile     string
	derivationPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "multisend",
		Short:         "Validate and broadcast one-to-many token disbursements on Solana and Terra",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.network, "network", "n", consts.NetworkDevnet, "network to use: devnet | mainnet")
	pf.StringVarP(&flags.chain, "chain", "c", consts.DefaultChain, "chain to use: solana | terra")
	pf.StringVarP(&flags.path, "path", "p", "", "path to the multisend instruction file (JSON or YAML)")
	pf.StringVarP(&flags.configFile, "config", "f", "etc/multisend.yaml", "the config file, defaults are used when it does not exist")
	pf.StringVar(&flags.derivationPath, "derivation-path", "", "key derivation path, e.g. m/44'/501'/0'/0' or 0/0")
	_ = root.MarkPersistentFlagRequired("path")

	root.AddCommand(newValidateCmd(flags), newBroadcastCmd(flags))
	return root
}
