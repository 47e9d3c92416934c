// Package ftpsh implements the protocol engine of an interactive FTP client.
//
// # Overview
//
// A Session owns one control connection to an FTP server and, for the
// duration of a single listing or download, one data connection. Operator
// commands (dir, get, cd, ...) are mapped onto protocol exchanges, and every
// server reply runs through a cascade that may trigger further commands on
// its own: the greeting starts a USER/PASS login, a 227 reply opens the
// passive data connection, 421 ends the session and 550 abandons a transfer.
//
// # Basic Usage
//
//	s, err := ftpsh.Open("ftp.example.com", prompter,
//	    ftpsh.WithOutput(os.Stdout),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if _, err := s.Execute("cd", "pub"); err != nil {
//	    log.Print(err)
//	}
//	if _, err := s.Execute("get", "README"); err != nil {
//	    log.Print(err)
//	}
//	_, _ = s.Execute("quit")
//
// The Prompter supplies the user name and password when the server asks for
// them, and any argument the operator left out. Once the login completes the
// session sends TYPE for its transfer mode, Binary unless WithTransferMode
// says otherwise.
//
// # Data Connections
//
// Passive mode (the default) sends PASV and connects to the advertised
// endpoint. Active mode listens on an ephemeral local port and advertises it
// with PORT; toggle with the "passive" command or start with WithActiveMode.
// Transfers use binary representation unless "ascii" was issued, in which
// case every received line is re-terminated with CRLF. WithRateLimit caps
// the bandwidth of every transfer.
//
// # Error Handling
//
// Errors carry their kind, which can be tested with errors.Is:
//
//	if _, err := s.Execute("get", "file"); errors.Is(err, ftpsh.ErrDataChannel) {
//	    // the transfer failed but the session is still usable
//	}
//
// Only a lost control connection or a 421 reply closes the session.
package ftpsh
