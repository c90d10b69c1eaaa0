package main

import (
	"context"
	"fmt"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/logger"
	"github.com/fox-one/mixin-sdk-go"
	"github.com/shopspring/decimal"
)

// MixinSender pays claimed native amounts from the service wallet. Amounts
// are kept in base units by the ledger and converted with the configured
// precision here. Mixin deduplicates transfers by trace id, so a retried
// delivery after a crash pays at most once.
type MixinSender struct {
	client    *mixin.Client
	pin       string
	precision int32
}

func NewMixinSender(ctx context.Context, conf *ledger.Configuration) (*MixinSender, error) {
	s := &mixin.Keystore{
		ClientID:   conf.App.ClientId,
		SessionID:  conf.App.SessionId,
		PrivateKey: conf.App.PrivateKey,
		PinToken:   conf.App.PinToken,
	}
	client, err := mixin.NewFromKeystore(s)
	if err != nil {
		return nil, err
	}
	err = client.VerifyPin(ctx, conf.App.PIN)
	if err != nil {
		return nil, fmt.Errorf("verify pin %v", err)
	}
	return &MixinSender{
		client:    client,
		pin:       conf.App.PIN,
		precision: conf.Native.Precision,
	}, nil
}

func (ms *MixinSender) Send(ctx context.Context, tx *ledger.Transfer) error {
	amount := decimal.NewFromBigInt(tx.Amount.ToBig(), -ms.precision)
	in := &mixin.TransferInput{
		AssetID:    tx.AssetId,
		OpponentID: tx.Receiver,
		Amount:     amount,
		TraceID:    tx.TraceId,
		Memo:       tx.Memo,
	}
	snapshot, err := ms.client.Transfer(ctx, in, ms.pin)
	if err != nil {
		return err
	}
	logger.Verbosef("MixinSender.Send(%s, %s, %s) => %s\n", tx.TraceId, tx.Receiver, amount, snapshot.SnapshotID)
	return nil
}
