package public

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/mempool"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
)

type payloadInfo struct {
	Kind       string           `json:"kind"`
	ID         database.Hash    `json:"id"`
	Payload    database.Payload `json:"payload,omitempty"`
	InMempool  bool             `json:"inMempool"`
	Containing []database.Hash  `json:"containingBlocks"`
	Miner      string           `json:"miner,omitempty"`
}

type chainInfo struct {
	From   int32             `json:"from"`
	Blocks []state.BlockInfo `json:"blocks"`
}

type mempoolInfo struct {
	Count     int                 `json:"count"`
	Relations []mempool.Relations `json:"relations"`
}
