package catalog

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"vmpool/internal/domain"
)

func TestParsePoolsCSV(t *testing.T) {
	input := `name,display,count,enabled,software
ubuntu,Ubuntu 20.04 (Linux),10,true,"gcc (9.3), python (3.8.10), vim"
win,Windows Server,4,false,"Office (16.0.12345.20000), Licensed for teaching purposes only"

plain,Plain,0,TRUE,
`

	pools, err := ParsePoolsCSV(strings.NewReader(input))
	require.NoError(t, err)

	want := []domain.Pool{
		{
			ID:           "ubuntu",
			DisplayName:  "Ubuntu 20.04",
			MaximumCount: 10,
			Enabled:      true,
			OSName:       "Linux",
			InstalledSoftware: []domain.Software{
				{Name: "gcc", Version: "9.3"},
				{Name: "python", Version: "3.8.10"},
				{Name: "vim", Version: " - "},
			},
		},
		{
			ID:                "win",
			DisplayName:       "Windows Server",
			MaximumCount:      4,
			Enabled:           false,
			OSName:            " - ",
			Description:       "Licensed for teaching purposes only",
			InstalledSoftware: []domain.Software{{Name: "Office", Version: " - "}},
		},
		{
			ID:           "plain",
			DisplayName:  "Plain",
			MaximumCount: 0,
			Enabled:      false,
			OSName:       " - ",
		},
	}
	if diff := cmp.Diff(want, pools); diff != "" {
		t.Fatalf("pools mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePoolsCSV_Errors(t *testing.T) {
	input := `name,display,count,enabled
a,A,many,true
b,B,-2,true
,C,1,true
d,D,1,true
d,D,1,true
e,E
`
	_, err := ParsePoolsCSV(strings.NewReader(input))
	require.Error(t, err)
	for _, want := range []string{
		`line 2: maximum count "many" is not a number`,
		"line 3: maximum count must be >= 0",
		"line 4: id is required",
		`line 6: duplicate id "d"`,
		"line 7: expected at least 4 columns",
	} {
		require.Contains(t, err.Error(), want)
	}
}

func TestParsePoolsCSV_Empty(t *testing.T) {
	pools, err := ParsePoolsCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, pools)

	pools, err = ParsePoolsCSV(strings.NewReader("header only\n"))
	require.NoError(t, err)
	require.Empty(t, pools)
}
