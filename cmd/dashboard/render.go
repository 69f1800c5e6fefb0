package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/go-petr/unipay/internal/walletsync"
)

const timeLayout = "2006-01-02 15:04"

func render(w io.Writer, snap walletsync.Snapshot, total decimal.Decimal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if snap.Loading {
		fmt.Fprintln(tw, "loading...")
	}

	if snap.Err != nil {
		fmt.Fprintf(tw, "error: %v\n", snap.Err)
	}

	fmt.Fprintln(tw, "CURRENCY\tBALANCE\tAVAILABLE\tLOCKED")

	for _, b := range snap.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.CurrencyCode, b.Balance, b.AvailableBalance, b.LockedBalance)
	}

	fmt.Fprintf(tw, "TOTAL (USD)\t%s\t\t\n\n", total.StringFixed(2))

	fmt.Fprintln(tw, "CREATED\tTYPE\tSTATUS\tAMOUNT\tTO")

	for _, m := range snap.Movements {
		to := ""
		if m.DestinationCurrency != nil {
			to = *m.DestinationCurrency
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
			m.CreatedAt.UTC().Format(timeLayout), m.Type, m.Status, m.SourceAmount, m.SourceCurrency, to)
	}

	tw.Flush()
}
