package cli

import (
	"fmt"
	"strings"

	"github.com/linuxmatters/cabingain/internal/locale"
	"github.com/linuxmatters/cabingain/internal/processor"
)

// StatusLine renders one gain update as a single console line, with speed
// shown in unit.
func StatusLine(st processor.Status, unit locale.Unit) string {
	var b strings.Builder
	if st.Total > 0 {
		fmt.Fprintf(&b, "%3.0f%% ", st.Progress*100)
	}
	fmt.Fprintf(&b, "%s %s", KeyStyle.Render("speed"), ValueStyle.Render(unit.Format(st.SpeedKMH)))
	if st.HasCabin {
		fmt.Fprintf(&b, "  %s %s", KeyStyle.Render("cabin"), ValueStyle.Render(fmt.Sprintf("%.1f dB", st.CabinDB)))
	}
	fmt.Fprintf(&b, "  %s %s", KeyStyle.Render("noise"), ValueStyle.Render(fmt.Sprintf("%.1f dB", st.NoiseDB)))
	fmt.Fprintf(&b, "  %s %s", KeyStyle.Render("gain"), ValueStyle.Render(fmt.Sprintf("%+.1f dB", st.GainDB)))
	switch {
	case st.NoReading:
		b.WriteString("  " + WarnStyle.Render("[held]"))
	case st.Fallback:
		b.WriteString("  " + WarnStyle.Render("[simulated]"))
	}
	return b.String()
}
