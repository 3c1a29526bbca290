package formats

import (
	"github.com/jin-gizmo/docma/internal/plugins"
)

// Top level names from before the au namespace existed.
func loadDeprecated(reg *plugins.Registrar) error {
	dmy := checker(DateChecker(DMY), "date.dmy")

	for _, p := range []*plugins.Plugin{
		plugins.DeprecatedAlias("ABN", "au.abn", abnPlugin),
		plugins.DeprecatedAlias("ACN", "au.acn", acnPlugin),
		plugins.DeprecatedAlias("NMI", "au.nmi", nmiPlugin),
		plugins.DeprecatedAlias("MIRN", "au.mirn", mirnPlugin),
		plugins.DeprecatedAlias("DD/MM/YYYY", "date.dmy", dmy),
		plugins.DeprecatedAlias("_dmy", "date.dmy", dmy),
	} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}
