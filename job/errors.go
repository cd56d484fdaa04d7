package job

import (
	"fmt"

	"github.com/evidentia/orc-core/internal/orcerr"
)

func errCommandLineTooLong(line string) error {
	return orcerr.Wrap(orcerr.ErrCommandLineTooLong, fmt.Sprintf("job: command line is %d characters", len(line)), nil)
}
