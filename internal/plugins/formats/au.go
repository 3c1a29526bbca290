package formats

import (
	"github.com/jin-gizmo/docma/internal/plugins"
)

var (
	abnWeights = []int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}
	acnWeights = []int{8, 7, 6, 5, 4, 3, 2, 1}
)

// IsABN checks an Australian Business Number. Spaces are ignored and
// integers are accepted.
func IsABN(v any) bool {
	d, ok := digits(v)
	if !ok || len(d) != 11 {
		return false
	}
	d[0]--
	sum := 0
	for i, w := range abnWeights {
		sum += d[i] * w
	}

	return sum%89 == 0
}

// IsACN checks an Australian Company Number.
func IsACN(v any) bool {
	d, ok := digits(v)
	if !ok || len(d) != 9 {
		return false
	}
	sum := 0
	for i, w := range acnWeights {
		sum += d[i] * w
	}

	return (10-sum%10)%10 == d[8]
}

// IsNMI checks a 10 character National Metering Identifier. NMIs never
// start with 5; those are MIRNs.
func IsNMI(v any) bool {
	s, ok := v.(string)

	return ok && len(s) == 10 && s[0] != '5'
}

// IsMIRN checks a 10 character Meter Installation Registration Number.
func IsMIRN(v any) bool {
	s, ok := v.(string)

	return ok && len(s) == 10 && s[0] == '5'
}

var (
	abnPlugin  = checker(IsABN, "abn")
	acnPlugin  = checker(IsACN, "acn")
	nmiPlugin  = checker(IsNMI, "nmi")
	mirnPlugin = checker(IsMIRN, "mirn")
)

func loadCompanyIDs(reg *plugins.Registrar) error {
	for _, p := range []*plugins.Plugin{abnPlugin, acnPlugin} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}

func loadIndustry(reg *plugins.Registrar) error {
	for _, p := range []*plugins.Plugin{nmiPlugin, mirnPlugin} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}
