// Package inspect implements the "votor inspect" subcommand, which
// decodes serialized vote account records and prints their contents.
package inspect

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"go.alpenglow.io/votor/pkg/features"
	"go.alpenglow.io/votor/pkg/voteprog"
)

var (
	Cmd = cobra.Command{
		Use:   "inspect [records...]",
		Short: "Decode and print vote account records",
		Args:  cobra.MinimumNArgs(1),
		Run:   run,
	}

	featuresConfigPath string
)

func init() {
	Cmd.Flags().StringVarP(&featuresConfigPath, "features", "f", "", "Path of a YAML file listing active feature gates")
}

type featuresConfig struct {
	Features []string `yaml:"features"`
}

func loadFeatures(path string) (features.Features, error) {
	if path == "" {
		return features.NewFeaturesDefault(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return features.Features{}, err
	}

	var config featuresConfig
	err = yaml.Unmarshal(raw, &config)
	if err != nil {
		return features.Features{}, fmt.Errorf("failed to parse features config %s: %w", path, err)
	}

	f := features.NewFeaturesDefault()
	for _, name := range config.Features {
		gate, ok := features.GateByName(name)
		if !ok {
			return features.Features{}, fmt.Errorf("unknown feature gate %q in %s", name, path)
		}
		f.EnableFeature(gate)
	}
	return f, nil
}

type decodedRecord struct {
	path      string
	voteState *voteprog.VoteState
}

func run(c *cobra.Command, args []string) {
	f, err := loadFeatures(featuresConfigPath)
	if err != nil {
		klog.Exitf("failed to load feature gates: %s", err)
	}

	var mu sync.Mutex
	var records []decodedRecord

	eg, _ := errgroup.WithContext(c.Context())
	for _, path := range args {
		path := path
		eg.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			voteState, err := voteprog.UnmarshalVoteState(raw)
			if err != nil {
				return fmt.Errorf("failed to decode vote record %s: %w", path, err)
			}

			mu.Lock()
			records = append(records, decodedRecord{path: path, voteState: voteState})
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		klog.Exitf("%s", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].path < records[j].path })

	for _, record := range records {
		printRecord(record.path, record.voteState, f)
	}
}

func printRecord(path string, voteState *voteprog.VoteState, f features.Features) {
	fmt.Printf("%s:\n", path)
	fmt.Printf("  node identity:   %s\n", voteState.NodePubkey.String())
	fmt.Printf("  withdrawer:      %s\n", voteState.AuthorizedWithdrawer.String())
	fmt.Printf("  commission:      %d%%\n", voteState.Commission)
	fmt.Printf("  voter:           %s (since epoch %d)\n", voteState.AuthorizedVoter.Pubkey.String(), voteState.AuthorizedVoter.Epoch)

	if voteState.NextAuthorizedVoter != nil {
		fmt.Printf("  next voter:      %s (from epoch %d)\n", voteState.NextAuthorizedVoter.Pubkey.String(), voteState.NextAuthorizedVoter.Epoch)
	}

	credits := voteState.EpochCredits
	fmt.Printf("  credits:         %d total, %d earned in epoch %d\n", credits.Credits, credits.EarnedThisEpoch(), credits.Epoch)

	fmt.Printf("  notarized:       slot %d\n", voteState.LatestNotarized.Slot)
	fmt.Printf("  finalized:       slot %d\n", voteState.LatestFinalized.Slot)
	if voteState.LatestSkipRange.End != 0 {
		fmt.Printf("  skipped:         slots %d-%d", voteState.LatestSkipRange.Start, voteState.LatestSkipRange.End)
		if f.IsActive(features.DisableSkipRangeCredits) {
			fmt.Printf(" (credits disabled)")
		}
		fmt.Printf("\n")
	}
	if voteState.LastTimestamp.Slot != 0 {
		fmt.Printf("  last timestamp:  %d at slot %d\n", voteState.LastTimestamp.Timestamp, voteState.LastTimestamp.Slot)
	}

	if last := voteState.PriorVoters.Last(); last != nil {
		fmt.Printf("  prior voter:     %s (epochs %d-%d)\n", last.Pubkey.String(), last.EpochStart, last.EpochEnd)
	}

	votes := make([]voteprog.LandedVote, 0, voteState.Votes.Len())
	voteState.Votes.Range(func(i int, landedVote voteprog.LandedVote) bool {
		votes = append(votes, landedVote)
		return true
	})
	if len(votes) > 0 {
		fmt.Printf("  recent votes:\n")
		for _, vote := range votes {
			fmt.Printf("    slot %d (latency %d, %d credits)\n", vote.Slot, vote.Latency, voteprog.CreditsForLatency(uint64(vote.Latency)))
		}
	}
}
