package private

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// newBlock is what the altchain submits for every block it produces or
// receives. The PopData root is computed by the node.
type newBlock struct {
	Hash          database.Hash     `json:"hash" validate:"required"`
	PreviousBlock database.Hash     `json:"previousBlock" validate:"required"`
	Height        int32             `json:"height" validate:"gte=1"`
	Timestamp     uint32            `json:"timestamp" validate:"required"`
	PopData       *database.PopData `json:"popData"`
}

func (nb newBlock) header() database.AltBlock {
	h := database.AltBlock{
		ID:        nb.Hash,
		PrevBlock: nb.PreviousBlock,
		Number:    nb.Height,
		Time:      nb.Timestamp,
	}

	if nb.PopData != nil {
		h.PopRoot = nb.PopData.Root()
	}

	return h
}

type removed struct {
	Removed int `json:"removed"`
}
