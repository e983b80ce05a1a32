// Package params converts route and query parameters into the values the
// state API accepts.
package params

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/VeriBlock/alt-integration-go/business/web/errs"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hash parses the named route parameter as a 0x prefixed block or payload
// hash.
func Hash(r *http.Request, name string) (database.Hash, error) {
	s := web.Param(r, name)

	b, err := hexutil.Decode(s)
	if err != nil {
		return database.Hash{}, errs.NewTrusted(fmt.Errorf("%s %q: %w", name, s, err), http.StatusBadRequest)
	}

	if len(b) != len(database.Hash{}) {
		return database.Hash{}, errs.NewTrusted(fmt.Errorf("%s %q: expected %d bytes, got %d", name, s, len(database.Hash{}), len(b)), http.StatusBadRequest)
	}

	return common.BytesToHash(b), nil
}

// Kind parses the named route parameter as a payload kind.
func Kind(r *http.Request, name string) (database.PayloadKind, error) {
	kind, err := database.ParseKind(web.Param(r, name))
	if err != nil {
		return 0, errs.NewTrusted(err, http.StatusBadRequest)
	}
	return kind, nil
}

// Height parses the named query parameter as a block height. A missing
// parameter returns the default.
func Height(r *http.Request, name string, def int32) (int32, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}

	h, err := strconv.ParseInt(s, 10, 32)
	if err != nil || h < 0 {
		return 0, errs.NewTrusted(fmt.Errorf("%s %q is not a valid height", name, s), http.StatusBadRequest)
	}

	return int32(h), nil
}
