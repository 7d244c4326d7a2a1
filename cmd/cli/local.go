package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/source"
	"github.com/spf13/cobra"
)

/* This file implements the commands that work on local files only and never contact a server */

var (
	printTree, rawProof   = false, false
	trustedRoot, proofArg = "", ""
)

func init() {
	rootHashCmd.Flags().BoolVar(&printTree, "tree", false, "print every level of the tree")
	verifyCmd.Flags().StringVar(&trustedRoot, "root", "", "the trusted merkle root in hex (required)")
	verifyCmd.Flags().StringVar(&proofArg, "proof", "", "path of the proof file (required)")
	verifyCmd.Flags().BoolVar(&rawProof, "raw", false, "the proof file holds raw concatenated digests instead of hex lines")
}

var (
	rootHashCmd = &cobra.Command{
		Use:   "root <dir> --tree",
		Short: "compute the merkle root of every file in a directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tree, err := localTree(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			if printTree {
				writeToConsole(tree.String(), nil)
				return
			}
			writeToConsole(tree.Root().String(), nil)
		},
	}

	proveCmd = &cobra.Command{
		Use:   "prove <dir> <index>",
		Short: "print the proof of a file in a directory, one hex digest per line",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			index := argToIndex(args[1])
			tree, err := localTree(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			proof, err := tree.Proof(index)
			if err != nil {
				l.Fatal(err.Error())
			}
			// a single file tree has an empty proof
			if len(proof) != 0 {
				writeToConsole(formatProof(proof), nil)
			}
		},
	}

	verifyCmd = &cobra.Command{
		Use:   "verify <file> <index> --root=<hex> --proof=<path>",
		Short: "check a local file against a trusted root with its proof",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if trustedRoot == "" || proofArg == "" {
				l.Fatal("both --root and --proof are required")
			}
			index := argToIndex(args[1])
			root, err := merkle.DigestFromHex(trustedRoot)
			if err != nil {
				l.Fatal(err.Error())
			}
			proof, err := readProofFile(proofArg, rawProof)
			if err != nil {
				l.Fatal(err.Error())
			}
			leaf, err := source.HashFile(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			if err = merkle.VerifyLeaf(root, index, leaf, proof); err != nil {
				exitOnMismatch(err)
			}
			l.Infof("File %s is leaf %d of merkle root %s", args[0], index, root)
		},
	}
)

// localTree() builds the tree over every file of dir
func localTree(dir string) (*merkle.Tree, lib.ErrorI) {
	digests, err := source.NewDirSource(dir).Digests(context.Background())
	if err != nil {
		return nil, err
	}
	return merkle.NewTree(digests), nil
}

// formatProof() renders a proof as one hex digest per line, leaf level first
func formatProof(proof merkle.Proof) string {
	return strings.Join(proof.Strings(), "\n")
}

// readProofFile() loads a proof from either hex lines or raw concatenated digests
func readProofFile(path string, raw bool) (merkle.Proof, lib.ErrorI) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, lib.ErrReadFile(err)
	}
	if raw {
		return merkle.ProofFromBytes(bz)
	}
	return parseProof(bytes.NewReader(bz))
}

// parseProof() reads one hex digest per line, blank lines are ignored
func parseProof(r io.Reader) (merkle.Proof, lib.ErrorI) {
	proof := merkle.Proof{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := merkle.DigestFromHex(line)
		if err != nil {
			return nil, err
		}
		proof = append(proof, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, lib.ErrReadFile(err)
	}
	return proof, nil
}

// argToIndex() parses a leaf index argument or exits
func argToIndex(arg string) uint64 {
	index, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		l.Fatalf("invalid file index %q: %s", arg, err.Error())
	}
	return index
}
