package cli

import (
	"bytes"
	"testing"
)

func TestPrinter(t *testing.T) {
	tests := []struct {
		name    string
		emoji   bool
		quiet   bool
		print   func(p *Printer)
		wantOut string
		wantErr string
	}{
		{
			name:    "success with emoji",
			emoji:   true,
			print:   func(p *Printer) { p.Success("Loaded %d certificates", 2) },
			wantOut: "✅ Loaded 2 certificates\n",
		},
		{
			name:    "success without emoji",
			print:   func(p *Printer) { p.Success("Loaded %d certificates", 2) },
			wantOut: "Loaded 2 certificates\n",
		},
		{
			name:  "quiet mode suppresses info",
			emoji: true,
			quiet: true,
			print: func(p *Printer) { p.Key("prod") },
		},
		{
			name:    "errors always show",
			emoji:   true,
			quiet:   true,
			print:   func(p *Printer) { p.Error("gone: %s", "not_found") },
			wantErr: "❌ gone: not_found\n",
		},
		{
			name:    "warnings go to stderr",
			print:   func(p *Printer) { p.Warn("half") },
			wantErr: "half\n",
		},
		{
			name:    "bullet with emoji",
			emoji:   true,
			print:   func(p *Printer) { p.Bullet("tip") },
			wantOut: "   • tip\n",
		},
		{
			name:    "bullet without emoji",
			print:   func(p *Printer) { p.Bullet("tip") },
			wantOut: "   - tip\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			tt.print(NewPrinter(&out, &errOut, tt.emoji, tt.quiet))

			if out.String() != tt.wantOut {
				t.Errorf("stdout = %q, want %q", out.String(), tt.wantOut)
			}
			if errOut.String() != tt.wantErr {
				t.Errorf("stderr = %q, want %q", errOut.String(), tt.wantErr)
			}
		})
	}
}
