package state

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
)

// Save writes the altchain tree and its active tip to the repository. The
// protecting trees are not written since replaying the altchain payloads
// rebuilds them.
func (s *State) Save() error {
	return s.write("Save", func() error {
		blocks, tip, err := s.engine.Snapshot()
		if err != nil {
			return err
		}

		if err := s.db.WriteBlocks(genesis.TierAlt, blocks, tip); err != nil {
			return err
		}

		s.evHandler("state: Save: blocks[%d] tip[%s]", len(blocks), tip)

		return nil
	})
}

// load restores the altchain tree written by Save and replays the payloads
// up to the stored tip.
func (s *State) load() error {
	return s.write("load", func() error {
		blocks, tip, err := s.db.ReadBlocks(genesis.TierAlt)
		if err != nil {
			return err
		}

		if len(blocks) == 0 {
			s.evHandler("state: load: empty repository, starting from genesis")
			return nil
		}

		if err := s.engine.Restore(blocks, tip); err != nil {
			return err
		}

		s.evHandler("state: load: blocks[%d] tip[%s]", len(blocks), tip)

		return nil
	})
}
