// Package credits implements the "votor credits" subcommand, which
// prints the latency-to-credits award schedule.
package credits

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"go.alpenglow.io/votor/pkg/voteprog"
)

var (
	Cmd = cobra.Command{
		Use:   "credits",
		Short: "Print the vote credit award schedule",
		Run:   run,
	}

	commission uint8
	amount     uint64
)

func init() {
	Cmd.Flags().Uint8VarP(&commission, "commission", "c", 0, "Also show the commission split of --amount at this percentage")
	Cmd.Flags().Uint64VarP(&amount, "amount", "a", 0, "Reward amount to split between operator and delegators")
}

func run(c *cobra.Command, args []string) {
	fmt.Printf("grace period: %d slots, maximum award: %d credits\n\n", voteprog.VoteCreditsGraceSlots, voteprog.VoteCreditsMaximumPerSlot)
	fmt.Printf("%-10s %s\n", "latency", "credits")

	decayEnd := uint64(voteprog.VoteCreditsGraceSlots + voteprog.VoteCreditsMaximumPerSlot)
	for latency := uint64(0); latency <= decayEnd; latency++ {
		fmt.Printf("%-10d %d\n", latency, voteprog.CreditsForLatency(latency))
	}
	fmt.Printf("%-10s %d\n", fmt.Sprintf(">%d", decayEnd), voteprog.CreditsForLatency(decayEnd+1))

	if amount > 0 {
		if commission > 100 {
			klog.Exitf("commission must be between 0 and 100, got %d", commission)
		}

		voteState := voteprog.VoteState{Commission: commission}
		operator, delegator, wasSplit := voteState.CommissionSplit(amount)
		fmt.Printf("\nsplit of %d at %d%% commission: operator %d, delegators %d", amount, commission, operator, delegator)
		if wasSplit {
			fmt.Printf(" (remainder %d discarded)", amount-operator-delegator)
		}
		fmt.Printf("\n")
	}
}
