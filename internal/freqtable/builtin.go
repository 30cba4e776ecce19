package freqtable

// Built-in operating points of the two clusters. Costs are measured power
// divided by frequency, scaled by 10^10.
var (
	littleFrequencies = []uint{
		338000,
		442000,
		546000,
		650000,
		754000,
		858000,
		962000,
		1066000,
		1170000,
		1274000,
		1378000,
		1482000,
		1586000,
	}
	littleCosts = []uint{
		339366,
		339367,
		384615,
		446154,
		490716,
		536131,
		592516,
		656660,
		709402,
		792779,
		870827,
		951417,
		1052963,
	}

	bigFrequencies = []uint{
		520000,
		624000,
		728000,
		832000,
		936000,
		1040000,
		1144000,
		1248000,
		1352000,
		1456000,
		1560000,
		1664000,
		1768000,
		1872000,
		1976000,
		2080000,
		2184000,
		2288000,
		2392000,
		2496000,
		2600000,
	}
	bigCosts = []uint{
		3159339,
		3159340,
		3159341,
		3353365,
		3547009,
		3759615,
		4073427,
		4294872,
		4637574,
		4869505,
		5224359,
		5594952,
		5848416,
		6372863,
		6649798,
		7067308,
		7353480,
		7941434,
		8398829,
		8709936,
		9350000,
	}
)

// Little returns the 13 entry table of cluster 0.
func Little() *Table {
	return MustNew(littleFrequencies, littleCosts)
}

// Big returns the 21 entry table of cluster 1.
func Big() *Table {
	return MustNew(bigFrequencies, bigCosts)
}

// Builtin returns the tables indexed by cluster id.
func Builtin() []*Table {
	return []*Table{Little(), Big()}
}
