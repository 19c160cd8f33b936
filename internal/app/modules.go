package app

import (
	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/modules/alignment"
	"github.com/seqflow-io/seqflow/modules/contamination"
	"github.com/seqflow-io/seqflow/modules/fingerprint"
	"github.com/seqflow-io/seqflow/modules/qualitymetrics"
)

// coreModules is the definitive list of all capability modules that are
// compiled into the seqflow binary.
var coreModules = []capability.Module{
	&alignment.Module{},
	&qualitymetrics.Module{},
	&contamination.Module{},
	&fingerprint.Module{},
}
