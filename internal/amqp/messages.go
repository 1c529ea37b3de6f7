package amqp

import (
	"encoding/json"
	"fmt"

	"expensebook/internal/core"
)

// EncodeEvent converts a ledger event to its wire form.
func EncodeEvent(ev core.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a message body, rejecting unknown event kinds and
// add or edit events that carry no transaction.
func DecodeEvent(data []byte) (core.Event, error) {
	var ev core.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.Event{}, err
	}

	switch ev.Kind {
	case core.EventExpenseAdded, core.EventTransactionEdited:
		if ev.Transaction == nil {
			return core.Event{}, fmt.Errorf("%s event without transaction", ev.Kind)
		}
		if ev.TransactionID == "" {
			ev.TransactionID = ev.Transaction.ID
		}
	case core.EventTransactionDeleted:
		if ev.TransactionID == "" {
			return core.Event{}, fmt.Errorf("%s event without transaction id", ev.Kind)
		}
	case core.EventLedgerCleared:
	default:
		return core.Event{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ev, nil
}
