package derive

import harp "github.com/stcorp/harp-go"

// BuiltinRules is a small, illustrative rule database sufficient to
// exercise the search engine end to end. The real per-species
// derivation rule table is data owned outside this core; a host
// embedding this module supplies its own, larger Rule slice to
// NewEngine.
var BuiltinRules = []Rule{
	{
		// Ideal-gas number density: n = P / (k_B * T).
		OutputName: "number_density",
		OutputUnit: "molec/cm3",
		OutputDims: []harp.Dimension{harp.Time, harp.Vertical},
		Inputs: []Input{
			{Name: "pressure", Unit: "hPa", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
			{Name: "temperature", Unit: "K", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
		},
		Expr: "(pressure * 100) / (1.380649e-23 * temperature) / 1e6",
	},
	{
		// Volume mixing ratio from a partial pressure and total pressure.
		OutputName: "volume_mixing_ratio",
		OutputUnit: "1",
		OutputDims: []harp.Dimension{harp.Time, harp.Vertical},
		Inputs: []Input{
			{Name: "partial_pressure", Unit: "hPa", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
			{Name: "pressure", Unit: "hPa", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
		},
		Expr: "partial_pressure / pressure",
	},
	{
		// Mass density from number density and a molar mass (kg/mol),
		// via Avogadro's number.
		OutputName: "mass_density",
		OutputUnit: "kg/m3",
		OutputDims: []harp.Dimension{harp.Time, harp.Vertical},
		Inputs: []Input{
			{Name: "number_density", Unit: "molec/cm3", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
			{Name: "molar_mass", Unit: "kg/mol", Dims: []harp.Dimension{harp.Time, harp.Vertical}},
		},
		Expr: "number_density * 1e6 / 6.02214076e23 * molar_mass",
	},
}
