package rod

const (
	basicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body style="margin:0">
	<h1>Hello World</h1>
</body>
</html>`

	// The button covers the top-left quarter of the viewport, the input the
	// bottom-right quarter.
	interactiveHTML = `<!DOCTYPE html>
<html>
<head><title>Interactive</title></head>
<body style="margin:0">
	<button id="btn" style="position:fixed;left:0;top:0;width:50vw;height:50vh">Click Me</button>
	<input id="email" style="position:fixed;left:50vw;top:50vh;width:50vw;height:50vh" />
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked!';
		});
	</script>
</body>
</html>`

	scrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
</body>
</html>`
)
