// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/jaxnet/smicp/cmd/smicpctl/storage"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

type keyPair struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	SecretKey string `json:"secret_key"`
}

func (app *App) KeygenCmd(c *cli.Context) error {
	signer, err := validators.NewSigner()
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to generate key"), 1)
	}
	return printJSON(c, keyPair{ID: signer.ID(), PubKey: signer.PubKeyHex(), SecretKey: signer.PrivKeyHex()})
}

func (app *App) BatchCmd(c *cli.Context) error {
	if err := requireFlags(c, flagChain, flagBlock); err != nil {
		return err
	}

	batch, err := merkle.CreateBatch(c.String(flagChain), c.Uint64(flagBlock), c.Int(flagCount))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	repo := storage.NewCSVStorage(app.config.DataFile)
	if err = repo.SaveTransactions(batch.Transactions()); err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to save batch"), 1)
	}

	_, err = fmt.Fprintln(c.App.Writer, batch.Root.String())
	return err
}

// loadBatch rebuilds the batch stored in the data file.  Chain and block are
// taken from the first row.
func (app *App) loadBatch() (*merkle.Batch, error) {
	txs, err := storage.NewCSVStorage(app.config.DataFile).FetchTransactions()
	if err != nil {
		return nil, cli.NewExitError(errors.Wrap(err, "unable to read batch"), 1)
	}
	if len(txs) == 0 {
		return nil, cli.NewExitError("batch file is empty", 1)
	}

	batch, err := merkle.BuildBatch(txs[0].ChainID, txs[0].BlockNumber, txs)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return batch, nil
}

func (app *App) ProveCmd(c *cli.Context) error {
	batch, err := app.loadBatch()
	if err != nil {
		return err
	}

	proof, err := batch.GenerateProof(c.Int(flagIndex))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return printJSON(c, proof)
}

func parseRoot(c *cli.Context) (chainhash.Hash, error) {
	root, err := chainhash.NewHashFromStr(c.String(flagRoot))
	if err != nil {
		return chainhash.Hash{}, cli.NewExitError(errors.Wrap(err, "invalid root"), 1)
	}
	return *root, nil
}

func (app *App) SignRootCmd(c *cli.Context) error {
	if err := requireFlags(c, flagChain, flagBlock, flagRoot); err != nil {
		return err
	}
	root, err := parseRoot(c)
	if err != nil {
		return err
	}
	signer, err := app.signer()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	sig := signer.SignAnchor(c.String(flagChain), c.Uint64(flagBlock), root)
	_, err = fmt.Fprintf(c.App.Writer, "%s:%s\n", sig.Validator, sig.Signature)
	return err
}

// parseSignature splits the <validator-id>:<hex-signature> form printed by
// sign-root.  A value without a colon is an anonymous signature.
func parseSignature(value string) validators.Signature {
	if i := strings.LastIndex(value, ":"); i >= 0 {
		return validators.Signature{Validator: value[:i], Signature: value[i+1:]}
	}
	return validators.Signature{Signature: value}
}

func (app *App) AnchorCmd(c *cli.Context) error {
	if err := requireFlags(c, flagChain, flagBlock, flagRoot, flagSig); err != nil {
		return err
	}
	root, err := parseRoot(c)
	if err != nil {
		return err
	}

	values := c.StringSlice(flagSig)
	sigs := make([]validators.Signature, 0, len(values))
	for _, v := range values {
		sigs = append(sigs, parseSignature(v))
	}

	a, err := app.client.AnchorRoot(c.String(flagChain), c.Uint64(flagBlock), root, sigs)
	if err != nil {
		return rpcFailure(err, "anchor rejected")
	}
	return printJSON(c, a)
}

func (app *App) TrustCmd(c *cli.Context) error {
	if err := requireFlags(c, flagChain, flagBlock, flagRoot); err != nil {
		return err
	}
	root, err := parseRoot(c)
	if err != nil {
		return err
	}

	tr, err := app.client.SetTrustedRoot(c.String(flagChain), c.Uint64(flagBlock), root, c.String(flagProof))
	if err != nil {
		return rpcFailure(err, "trusted root rejected")
	}
	return printJSON(c, tr)
}

func (app *App) VerifyCmd(c *cli.Context) error {
	batch, err := app.loadBatch()
	if err != nil {
		return err
	}

	if !c.Bool(flagAll) {
		tx, err := batch.Transaction(c.Int(flagIndex))
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		proof, err := batch.GenerateProof(c.Int(flagIndex))
		if err != nil {
			return cli.NewExitError(err, 1)
		}

		rec, err := app.client.VerifyTransaction(batch.ChainID, batch.BlockNumber, tx, *proof)
		if err != nil {
			return rpcFailure(err, "verification failed")
		}
		return printJSON(c, rec)
	}

	items := make([]rpcjson.VerifyTransactionCmd, batch.Len())
	for i := range items {
		proof, err := batch.GenerateProof(i)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		tx, _ := batch.Transaction(i)
		items[i] = rpcjson.VerifyTransactionCmd{
			SourceChain: batch.ChainID,
			BlockNumber: batch.BlockNumber,
			Transaction: tx,
			Proof:       *proof,
		}
	}

	results, err := app.client.VerifyTransactionBatch(items)
	if err != nil {
		return rpcFailure(err, "batch verification failed")
	}

	rows := make([]storage.VerificationRow, len(results))
	verified := 0
	for i, res := range results {
		row := storage.VerificationRow{Index: res.Index}
		if res.Index >= 0 && res.Index < len(items) {
			row.TxID = items[res.Index].Transaction.ID
		}
		switch {
		case res.Record != nil:
			row.Verified = true
			row.TransactionHash = res.Record.TransactionHash.String()
			verified++
		case res.Error != nil:
			row.Error = res.Error.Message
			if res.Error.Data != nil {
				row.Error = res.Error.Data.Code + ": " + res.Error.Message
			}
		}
		rows[i] = row
	}

	if out := c.String(flagOut); out != "" {
		if err = storage.NewCSVStorage(out).SaveVerifications(rows); err != nil {
			return cli.NewExitError(errors.Wrap(err, "unable to save report"), 1)
		}
	} else if err = printJSON(c, rows); err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.App.ErrWriter, "verified %d of %d\n", verified, len(rows))
	return err
}
