package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/intervention"
)

func (cli *commandLine) scan() error {
	res, err := cli.ivnSvc.Scan(context.Background(), intervention.DefaultThresholds)
	if err != nil {
		return err
	}

	fmt.Printf("scanned %d students in %s: %d triggered, %d skipped\n", res.Scanned, res.Duration, res.Triggered, res.Skipped)
	for _, msg := range res.Errors {
		fmt.Printf("error: %s\n", msg)
	}
	return nil
}
