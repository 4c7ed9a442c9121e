package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func testSettlement() *Settlement {
	return &Settlement{
		Custodian: "custodian",
		Position:  2,
		Finalized: []CandidateTotals{
			{
				Candidate: "alice",
				Totals: []AssetTotal{
					NewAssetTotal("0xhbtc", decimal.RequireFromString("2000000000000000000")),
				},
			},
			{
				Candidate: "bob",
				Totals: []AssetTotal{
					NewAssetTotal("0xwbtc", decimal.RequireFromString("200000000")),
				},
			},
		},
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner()
	assert.NoError(t, err)

	data, err := signer.Sign(testSettlement())
	assert.NoError(t, err)
	check.True(t, len(data) > 0)

	got, err := Verify(signer.PublicKey(), data)
	assert.NoError(t, err)
	check.Equal(t, "custodian", got.Custodian)
	check.Equal(t, 2, got.Position)
	assert.Equal(t, 2, len(got.Finalized))
	check.Equal(t, "alice", got.Finalized[0].Candidate)
	check.Equal(t, "2000000000000000000", got.Finalized[0].Totals[0].Amount)
	check.True(t, got.IssuedAt > 0)
}

func TestVerify_WrongKey(t *testing.T) {
	signer, err := NewSigner()
	assert.NoError(t, err)

	data, err := signer.Sign(testSettlement())
	assert.NoError(t, err)

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)

	_, err = Verify(&other.PublicKey, data)
	check.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	signer, err := NewSigner()
	assert.NoError(t, err)

	_, err = Verify(signer.PublicKey(), []byte{0x01, 0x02})
	check.Error(t, err)
}

func TestSign_PreservesExplicitIssuedAt(t *testing.T) {
	signer, err := NewSigner()
	assert.NoError(t, err)

	s := testSettlement()
	s.IssuedAt = 1_700_000_000
	data, err := signer.Sign(s)
	assert.NoError(t, err)

	got, err := Verify(signer.PublicKey(), data)
	assert.NoError(t, err)
	check.Equal(t, int64(1_700_000_000), got.IssuedAt)
}
