package params_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/VeriBlock/alt-integration-go/business/web/errs"
	"github.com/VeriBlock/alt-integration-go/business/web/params"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestParams(t *testing.T) {
	type result struct {
		hash   database.Hash
		kind   database.PayloadKind
		height int32
		err    error
	}

	var got result
	app := web.NewApp(make(chan os.Signal, 1))
	app.Handle(http.MethodGet, "v1", "/pop/:kind/:id", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got = result{}
		if got.hash, got.err = params.Hash(r, "id"); got.err != nil {
			return nil
		}
		if got.kind, got.err = params.Kind(r, "kind"); got.err != nil {
			return nil
		}
		got.height, got.err = params.Height(r, "from", 7)
		return nil
	})

	hash := common.HexToHash("0x01020304")

	t.Log("Given the need to parse route and query parameters.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the parameters are well formed.", testID)
		{
			app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/pop/atv/"+hash.Hex(), nil))

			if got.err != nil || got.hash != hash || got.kind != database.KindATV || got.height != 7 {
				t.Fatalf("\t%s\tTest %d:\tShould parse the parameters: %+v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould parse the parameters and default the height.", success, testID)
		}

		tt := map[string]string{
			"short hash":      "/v1/pop/atv/0x0102",
			"not hex":         "/v1/pop/atv/zz",
			"unknown kind":    "/v1/pop/eth/" + hash.Hex(),
			"negative height": "/v1/pop/vtb/" + hash.Hex() + "?from=-1",
		}

		for name, path := range tt {
			testID++
			t.Logf("\tTest %d:\tWhen the request has a %s.", testID, name)
			{
				app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

				if tr := errs.GetTrusted(got.err); tr == nil || tr.Status != http.StatusBadRequest {
					t.Fatalf("\t%s\tTest %d:\tShould reject the request with 400: %v", failed, testID, got.err)
				}
				t.Logf("\t%s\tTest %d:\tShould reject the request with 400.", success, testID)
			}
		}
	}
}
