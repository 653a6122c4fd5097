// fvm-run executes one exported function of a wasm actor against an
// in-memory kernel, mainly for poking at guests during development.
package main

import (
	"context"
	"fmt"
	"os"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/filecoin-project/go-address"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	fvm "github.com/filecoin-project/go-fvm"
	"github.com/filecoin-project/go-fvm/kernel"
)

func main() {
	var (
		entrypoint = flag.String("entrypoint", "invoke", "exported function to call")
		gasLimit   = flag.Uint64("gas-limit", 10_000_000_000, "invocation gas budget")
		origin     = flag.String("origin", "f0100", "origin actor address")
		nonce      = flag.Uint64("nonce", 0, "origin message nonce")
		verbose    = flag.Bool("verbose", false, "trace every syscall")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <module.wasm>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.TraceLevel)
	}

	if err := run(flag.Arg(0), *entrypoint, *origin, *nonce, *gasLimit, log); err != nil {
		log.WithError(err).Fatal("invocation failed")
	}
}

func run(path, entrypoint, origin string, nonce, gasLimit uint64, log *logrus.Logger) error {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}
	originAddr, err := address.NewFromString(origin)
	if err != nil {
		return fmt.Errorf("parsing origin address: %w", err)
	}

	ctx := context.Background()
	machine, err := fvm.New[*kernel.DefaultKernel](ctx)
	if err != nil {
		return err
	}
	defer machine.Close(ctx)
	machine.SetLogger(log)

	store := kernel.NewActorStore(dbm.NewMemDB())
	k := kernel.NewDefaultKernel(store, originAddr, nonce, gasLimit, kernel.DefaultPriceList())

	results, err := machine.Invoke(ctx, wasm, entrypoint, k)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"results":  results,
		"gas_used": k.GasUsed(),
	}).Info("invocation finished")
	return nil
}
