package auth0

// loginSuccessHTML is served after a successful callback so the user knows
// the browser tab can be closed.
const loginSuccessHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Vitalog - Signed in</title>
	<style>
		body { font-family: -apple-system, "Segoe UI", sans-serif; background: #f4faf4; color: #1f2d22; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
		.card { background: #fff; border-radius: 12px; padding: 40px 48px; box-shadow: 0 2px 12px rgba(0,0,0,0.08); text-align: center; }
		h1 { font-size: 22px; margin: 0 0 8px; }
		p { color: #5a6b5e; margin: 0; }
	</style>
</head>
<body>
	<div class="card">
		<h1>You are signed in to Vitalog</h1>
		<p>You can close this tab and return to the terminal.</p>
	</div>
</body>
</html>`

// loginErrorHTML is served when the provider redirects back with an error.
const loginErrorHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Vitalog - Sign in failed</title>
	<style>
		body { font-family: -apple-system, "Segoe UI", sans-serif; background: #fdf5f4; color: #2d1f1f; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
		.card { background: #fff; border-radius: 12px; padding: 40px 48px; box-shadow: 0 2px 12px rgba(0,0,0,0.08); text-align: center; }
		h1 { font-size: 22px; margin: 0 0 8px; }
		p { color: #6b5a5a; margin: 0; }
	</style>
</head>
<body>
	<div class="card">
		<h1>Sign in did not complete</h1>
		<p>Return to the terminal for details.</p>
	</div>
</body>
</html>`
