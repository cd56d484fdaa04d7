package job

import (
	"io"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputCaptureRoundTrip(t *testing.T) {
	c, err := newOutputCapture(t.TempDir())
	require.NoError(t, err)

	cmd := exec.Command("/bin/echo", "captured text")
	cmd.Stdout = c.writer()
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())
	c.writer().Close()

	r, err := c.reader()
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(data), "captured text")

	c.close()
}
