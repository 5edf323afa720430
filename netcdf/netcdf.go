// Package netcdf persists a Product to and from a netCDF-3 file: one
// named N-D variable per Variable, carrying its
// unit/description/valid_range/fill_value as attributes and its
// Dimension tags (in order) as a "dims" attribute, plus global
// attributes source_product and history.
package netcdf

import (
	"os"
	"strconv"
	"strings"

	"bitbucket.org/ctessum/cdf"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/harperr"
)

// Write serialises p to path as a netCDF-3 file.
func Write(path string, p *harp.Product) error {
	f, err := os.Create(path)
	if err != nil {
		return harperr.IO(path, "create: %v", err)
	}
	defer f.Close()

	names := p.Names()
	dimLen := map[harp.Dimension]int{}
	for _, name := range names {
		v := p.MustGet(name)
		shape := v.Shape()
		for i, d := range v.Dims() {
			dimLen[d] = shape[i]
		}
	}

	var dimNames []string
	var dimLens []int
	for d := harp.Time; d <= harp.Independent; d++ {
		if n, ok := dimLen[d]; ok {
			dimNames = append(dimNames, d.String())
			dimLens = append(dimLens, n)
		}
	}

	h := cdf.NewHeader(dimNames, dimLens)
	h.AddAttribute("", "source_product", p.SourceProduct)
	if p.History != "" {
		h.AddAttribute("", "history", p.History)
	}

	for _, name := range names {
		v := p.MustGet(name)
		varDims := make([]string, len(v.Dims()))
		for i, d := range v.Dims() {
			varDims[i] = d.String()
		}
		h.AddVariable(name, varDims, zeroFill(v.Type()))
		if v.Unit != "" {
			h.AddAttribute(name, "unit", v.Unit)
		}
		if v.Description != "" {
			h.AddAttribute(name, "description", v.Description)
		}
		if v.ValidRange != nil {
			h.AddAttribute(name, "valid_range", []float64{v.ValidRange[0], v.ValidRange[1]})
		}
		if v.FillValue != nil {
			h.AddAttribute(name, "fill_value", *v.FillValue)
		}
		if len(v.EnumLabels) > 0 {
			h.AddAttribute(name, "enum_labels", encodeEnumLabels(v.EnumLabels))
		}
		if v.Type() == harp.String {
			h.AddAttribute(name, "string_values", strings.Join(distinctStrings(v), ";"))
		}
		h.AddAttribute(name, "dims", strings.Join(varDims, ","))
		h.AddAttribute(name, "type", v.Type().String())
	}
	h.Define()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return harperr.IO(path, "write header: %v", err)
	}
	for _, name := range names {
		if err := writeVariable(cf, name, p.MustGet(name)); err != nil {
			return harperr.IO(path, "write variable %q: %v", name, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return harperr.IO(path, "finalize: %v", err)
	}
	return nil
}

// Read loads a Product previously written by Write.
func Read(path string) (*harp.Product, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, harperr.IO(path, "open: %v", err)
	}
	defer file.Close()
	cf, err := cdf.Open(file)
	if err != nil {
		return nil, harperr.IO(path, "open header: %v", err)
	}

	source, _ := cf.Header.GetAttribute("", "source_product").(string)
	p := harp.NewProduct(source)
	if h, ok := cf.Header.GetAttribute("", "history").(string); ok {
		p.History = h
	}

	for _, name := range cf.Header.Variables() {
		dimsAttr, _ := cf.Header.GetAttribute(name, "dims").(string)
		typeAttr, _ := cf.Header.GetAttribute(name, "type").(string)
		dims, err := parseDims(dimsAttr)
		if err != nil {
			return nil, harperr.IO(path, "variable %q: %v", name, err)
		}
		shape := cf.Header.Lengths(name)
		typ := parseType(typeAttr)
		v, err := harp.NewVariable(name, typ, dims, shape)
		if err != nil {
			return nil, harperr.IO(path, "variable %q: %v", name, err)
		}

		if u, ok := cf.Header.GetAttribute(name, "unit").(string); ok {
			v.Unit = u
		}
		if d, ok := cf.Header.GetAttribute(name, "description").(string); ok {
			v.Description = d
		}
		if vr, ok := cf.Header.GetAttribute(name, "valid_range").([]float64); ok && len(vr) == 2 {
			v.ValidRange = &[2]float64{vr[0], vr[1]}
		}
		if fv, ok := cf.Header.GetAttribute(name, "fill_value").(float64); ok {
			v.FillValue = &fv
		}
		if el, ok := cf.Header.GetAttribute(name, "enum_labels").(string); ok && el != "" {
			v.EnumLabels = decodeEnumLabels(el)
		}

		n := 1
		for _, s := range shape {
			n *= s
		}
		r := cf.Reader(name, nil, nil)
		switch typ {
		case harp.F32, harp.F64:
			buf := make([]float32, n)
			if _, err := r.Read(buf); err != nil {
				return nil, harperr.IO(path, "read %q: %v", name, err)
			}
			eachElement(shape, func(flat int, idx []int) { v.SetFloat(float64(buf[flat]), idx...) })
		case harp.String:
			table := strings.Split(attrString(cf, name, "string_values"), ";")
			buf := make([]int32, n)
			if _, err := r.Read(buf); err != nil {
				return nil, harperr.IO(path, "read %q: %v", name, err)
			}
			for i := 0; i < n; i++ {
				if code := int(buf[i]); code >= 0 && code < len(table) {
					v.SetString(table[code], i)
				}
			}
		default:
			buf := make([]int32, n)
			if _, err := r.Read(buf); err != nil {
				return nil, harperr.IO(path, "read %q: %v", name, err)
			}
			eachElement(shape, func(flat int, idx []int) { v.SetInt(int(buf[flat]), idx...) })
		}

		if err := p.AddVariable(v); err != nil {
			return nil, harperr.IO(path, "add variable %q: %v", name, err)
		}
	}
	return p, nil
}

func attrString(cf *cdf.File, name, attr string) string {
	s, _ := cf.Header.GetAttribute(name, attr).(string)
	return s
}

func parseDims(s string) ([]harp.Dimension, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	dims := make([]harp.Dimension, len(parts))
	for i, part := range parts {
		d, ok := harp.ParseDimension(part)
		if !ok {
			return nil, harperr.IO("", "unknown dimension %q", part)
		}
		dims[i] = d
	}
	return dims, nil
}

func parseType(s string) harp.ElementType {
	switch s {
	case "i8":
		return harp.I8
	case "i16":
		return harp.I16
	case "i32":
		return harp.I32
	case "f32":
		return harp.F32
	case "f64":
		return harp.F64
	case "string":
		return harp.String
	}
	return harp.F64
}

func decodeEnumLabels(s string) map[int]string {
	out := map[int]string{}
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		code, err := strconv.Atoi(kv[0])
		if err != nil {
			continue
		}
		out[code] = kv[1]
	}
	return out
}

func zeroFill(t harp.ElementType) interface{} {
	switch t {
	case harp.F32:
		return []float32{0}
	case harp.F64:
		return []float64{0}
	case harp.String:
		return []int32{0} // strings are stored as a per-variable code; see "string_values".
	default:
		return []int32{0}
	}
}

func writeVariable(f *cdf.File, name string, v *harp.Variable) error {
	shape := v.Shape()
	n := 1
	for _, s := range shape {
		n *= s
	}
	start := make([]int, len(shape))
	switch {
	case v.Type() == harp.F32 || v.Type() == harp.F64:
		data := make([]float32, n)
		eachElement(shape, func(flat int, idx []int) {
			data[flat] = float32(v.GetFloat(idx...))
		})
		w := f.Writer(name, start, shape)
		_, err := w.Write(data)
		return err
	case v.Type() == harp.String:
		code := stringCodes(v)
		data := make([]int32, n)
		for i := 0; i < n; i++ {
			data[i] = int32(code[v.GetString(i)])
		}
		w := f.Writer(name, start, shape)
		_, err := w.Write(data)
		return err
	default:
		data := make([]int32, n)
		eachElement(shape, func(flat int, idx []int) {
			data[flat] = int32(v.GetInt(idx...))
		})
		w := f.Writer(name, start, shape)
		_, err := w.Write(data)
		return err
	}
}

// eachElement calls fn with the flat row-major offset and the
// multi-index for every element of an array shaped shape.
func eachElement(shape []int, fn func(flat int, idx []int)) {
	idx := make([]int, len(shape))
	flat := 0
	var rec func(pos int)
	rec = func(pos int) {
		if pos == len(shape) {
			fn(flat, idx)
			flat++
			return
		}
		for i := 0; i < shape[pos]; i++ {
			idx[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
}

// stringCodes assigns a stable code (first-seen order) to each distinct
// value a String-typed Variable holds, for netCDF-3 storage as int32.
func stringCodes(v *harp.Variable) map[string]int {
	codes := map[string]int{}
	n := v.Len()
	for i := 0; i < n; i++ {
		s := v.GetString(i)
		if _, ok := codes[s]; !ok {
			codes[s] = len(codes)
		}
	}
	return codes
}

func distinctStrings(v *harp.Variable) []string {
	codes := stringCodes(v)
	out := make([]string, len(codes))
	for s, c := range codes {
		out[c] = s
	}
	return out
}

func encodeEnumLabels(labels map[int]string) string {
	codes := make([]int, 0, len(labels))
	for c := range labels {
		codes = append(codes, c)
	}
	sortInts(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c) + "=" + labels[c]
	}
	return strings.Join(parts, ";")
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
