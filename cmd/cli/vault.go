package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/canopy-network/merklevault/cmd/rpc"
	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/source"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

/* This file implements the commands that talk to a vault server */

var outPath, downloadRoot = "", ""

func init() {
	downloadCmd.Flags().StringVar(&downloadRoot, "root", "", "the trusted merkle root in hex, read from stdin if empty")
	downloadCmd.Flags().StringVar(&outPath, "out", "", "write the file here instead of stdout")
	syncCmd.Flags().StringVar(&downloadRoot, "root", "", "the trusted merkle root in hex, read from stdin if empty")
}

var (
	uploadCmd = &cobra.Command{
		Use:   "upload <dir>",
		Short: "upload every file of a directory and print the merkle root to keep",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			paths, err := source.ListFiles(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			indices, err := client.UploadFiles(paths)
			if err != nil {
				l.Fatal(err.Error())
			}
			l.Infof("Uploaded %d files", len(indices))
			tree, err := localTree(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			// the server may hold more files than this upload, which makes its root differ
			if remote, e := client.Root(); e != nil {
				l.Warnf("Unable to read the server root: %s", e.Error())
			} else if remote != tree.Root() {
				l.Warnf("Server root %s differs from the local root", remote)
			}
			writeToConsole(tree.Root().String(), nil)
		},
	}

	downloadCmd = &cobra.Command{
		Use:   "download <index> --root=<hex> --out=<path>",
		Short: "download a file and verify it against the trusted merkle root",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			index := argToIndex(args[0])
			root := promptRoot()
			bz, err := downloadVerified(client, index, root)
			if err != nil {
				exitOnMismatch(err)
			}
			if outPath == "" {
				if _, e := os.Stdout.Write(bz); e != nil {
					l.Fatal(e.Error())
				}
				return
			}
			if e := os.WriteFile(outPath, bz, 0644); e != nil {
				l.Fatal(lib.ErrWriteFile(e).Error())
			}
			l.Infof("Verified file %d written to %s", index, outPath)
		},
	}

	syncCmd = &cobra.Command{
		Use:   "sync <out-dir> --root=<hex>",
		Short: "download and verify every file of the vault into a directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			root := promptRoot()
			summary, err := syncVault(client, root, args[0], l)
			if err != nil {
				l.Fatal(err.Error())
			}
			p := message.NewPrinter(language.English)
			l.Info(p.Sprintf("Verified %d of %d files into %s", summary.Verified, summary.Total, args[0]))
			if len(summary.Failed) != 0 {
				l.Fatalf("Verification failed for indices %v", summary.Failed)
			}
		},
	}
)

// downloadVerified() downloads the file and proof at index and checks them against root
func downloadVerified(c *rpc.Client, index uint64, root merkle.Digest) ([]byte, lib.ErrorI) {
	bz, err := c.File(index)
	if err != nil {
		return nil, err
	}
	proof, err := c.Proof(index)
	if err != nil {
		return nil, err
	}
	if err = merkle.VerifyLeaf(root, index, source.HashContent(bz), proof); err != nil {
		return nil, err
	}
	return bz, nil
}

// syncSummary is the outcome of a vault sync
type syncSummary struct {
	Total    uint64   // files the server reported
	Verified uint64   // files that passed verification and were written
	Failed   []uint64 // indices that failed to download, verify or write
}

// syncVault() downloads every file the server holds, writing each verified file to outDir under its index
func syncVault(c *rpc.Client, root merkle.Digest, outDir string, log lib.LoggerI) (*syncSummary, lib.ErrorI) {
	status, err := c.Status()
	if err != nil {
		return nil, err
	}
	if !status.Committed {
		log.Warnf("The server holds %d files that can't be committed yet", status.LeafCount)
	}
	if e := os.MkdirAll(outDir, os.ModePerm); e != nil {
		return nil, lib.ErrWriteFile(e)
	}
	total := uint64(status.LeafCount)
	verified := bitset.New(uint(total))
	for i := uint64(0); i < total; i++ {
		bz, e := downloadVerified(c, i, root)
		if e != nil {
			log.Errorf("File %d: %s", i, e.Error())
			continue
		}
		if er := os.WriteFile(filepath.Join(outDir, strconv.FormatUint(i, 10)), bz, 0644); er != nil {
			log.Errorf("File %d: %s", i, lib.ErrWriteFile(er).Error())
			continue
		}
		verified.Set(uint(i))
	}
	summary := &syncSummary{Total: total, Verified: uint64(verified.Count()), Failed: []uint64{}}
	for i, ok := verified.NextClear(0); ok && uint64(i) < total; i, ok = verified.NextClear(i + 1) {
		summary.Failed = append(summary.Failed, uint64(i))
	}
	return summary, nil
}

// promptRoot() returns the trusted root from the --root flag, or reads a line of stdin
func promptRoot() merkle.Digest {
	if downloadRoot != "" {
		root, err := merkle.DigestFromHex(downloadRoot)
		if err != nil {
			l.Fatal(err.Error())
		}
		return root
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		l.Info("Enter the trusted merkle root:")
	}
	root, err := readRoot(os.Stdin)
	if err != nil {
		l.Fatal(err.Error())
	}
	return root
}

// readRoot() parses the first line of r as a hex root
func readRoot(r io.Reader) (merkle.Digest, lib.ErrorI) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return merkle.Digest{}, lib.ErrReadFile(err)
	}
	return merkle.DigestFromHex(strings.TrimSpace(line))
}

// exitOnMismatch() reports a failed verification with both roots and exits
func exitOnMismatch(err lib.ErrorI) {
	var mismatch *merkle.RootMismatchError
	if !errors.As(err, &mismatch) {
		l.Fatal(err.Error())
	}
	l.Error("File verification failed")
	l.Errorf("Calculated merkle root: %s", mismatch.Computed)
	l.Errorf("Expected merkle root: %s", mismatch.Expected)
	os.Exit(1)
}
