package web

// Static pages served around the OAuth flow.  Kept inline: three small
// documents are not worth a template directory.

const pageHome = `<!DOCTYPE html>
<html>
<head>
  <title>MonkeyBytes Verification</title>
  <style>
    body { font-family: sans-serif; background: #1a1a2e; color: #eee; text-align: center; padding-top: 8em; }
    a.button { background: #3eff06; color: #1a1a2e; padding: 0.8em 2em; border-radius: 6px; text-decoration: none; font-weight: bold; }
    p.footer { margin-top: 6em; color: #888; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>👑 MonkeyBytes Verification</h1>
  <p>Verify your Discord account to gain access to the kingdom.</p>
  <p><a class="button" href="/auth">Verify with Discord</a></p>
  <p class="footer">© MonkeyBytes Tech | The Royal Court</p>
</body>
</html>`

const pageDone = `<!DOCTYPE html>
<html>
<head>
  <title>Request Received</title>
  <style>
    body { font-family: sans-serif; background: #1a1a2e; color: #eee; text-align: center; padding-top: 8em; }
    p.footer { margin-top: 6em; color: #888; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>📜 Request Received</h1>
  <p>Your petition has been delivered to the royal court.</p>
  <p>You will receive a message on Discord once staff review your request. You may close this window.</p>
  <p class="footer">© MonkeyBytes Tech | The Royal Court</p>
</body>
</html>`

const pageAuthFail = `<!DOCTYPE html>
<html>
<head>
  <title>Verification Failed</title>
  <style>
    body { font-family: sans-serif; background: #1a1a2e; color: #eee; text-align: center; padding-top: 8em; }
    a { color: #3eff06; }
    p.footer { margin-top: 6em; color: #888; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>❌ Verification Failed</h1>
  <p>Something went wrong while verifying your account.</p>
  <p><a href="/auth">Try again</a></p>
  <p class="footer">© MonkeyBytes Tech | The Royal Court</p>
</body>
</html>`
