package klap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abhishek/klap/internal/credentials"
	"github.com/abhishek/klap/internal/cryptoutil"
)

func TestV1AuthHashMatchesV1Construction(t *testing.T) {
	creds := credentials.Credentials{Username: "a@b.com", Password: "pw"}
	require.Equal(t, cryptoutil.AuthHashV1(creds), V1{}.AuthHash(creds))
}

func TestV2AuthHashMatchesV2Construction(t *testing.T) {
	creds := credentials.Credentials{Username: "a@b.com", Password: "pw"}
	require.Equal(t, cryptoutil.AuthHashV2(creds), V2{}.AuthHash(creds))
}

func TestV1H1IgnoresRemoteSeed(t *testing.T) {
	local := seeds16(1)
	authHash := seeds16(2)
	h1 := V1{}.H1(local, seeds16(0xAA), authHash)
	h2 := V1{}.H1(local, seeds16(0xBB), authHash)
	require.Equal(t, h1, h2)
}

func TestV2H1MixesBothSeeds(t *testing.T) {
	local := seeds16(1)
	authHash := seeds16(2)
	h1 := V2{}.H1(local, seeds16(0xAA), authHash)
	h2 := V2{}.H1(local, seeds16(0xBB), authHash)
	require.NotEqual(t, h1, h2)
}

func TestV1AndV2ProduceDifferentHashesForSameInputs(t *testing.T) {
	creds := credentials.Credentials{Username: "x", Password: "y"}
	local, remote := seeds16(1), seeds16(2)

	v1Hash := V1{}.AuthHash(creds)
	v2Hash := V2{}.AuthHash(creds)
	require.NotEqual(t, v1Hash, v2Hash)

	require.NotEqual(t, V1{}.H1(local, remote, v1Hash), V2{}.H1(local, remote, v2Hash))
}

func TestVariantNames(t *testing.T) {
	require.Equal(t, "v1", V1{}.Name())
	require.Equal(t, "v2", V2{}.Name())
}
